package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"node.town/subtitles/db"
)

type Answers struct {
	Credentials  string
	LanguageCode string
	Recorder     string
	Port         string
	Pointer      string
	DatabaseURL  string
}

func Defaults() Answers {
	return Answers{
		LanguageCode: "en-US",
		Recorder:     "rec",
		Port:         "3000",
		Pointer:      "robot",
	}
}

func validatePort(s string) error {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

func validateCredentials(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read %s", path)
	}
	return nil
}

func Form(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Google service account JSON file").
				Description("Leave empty to use GOOGLE_APPLICATION_CREDENTIALS").
				Validate(validateCredentials).
				Value(&a.Credentials),
			huh.NewInput().
				Title("Language code").
				Value(&a.LanguageCode),
			huh.NewSelect[string]().
				Title("Recorder").
				Options(huh.NewOptions("rec", "sox", "arecord")...).
				Value(&a.Recorder),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP port").
				Validate(validatePort).
				Value(&a.Port),
			huh.NewSelect[string]().
				Title("Move captions away from the pointer?").
				Options(
					huh.NewOption("yes", "robot"),
					huh.NewOption("no", "none"),
				).
				Value(&a.Pointer),
			huh.NewInput().
				Title("Postgres URL for the caption archive").
				Description("Leave empty to disable the archive").
				Value(&a.DatabaseURL),
		),
	)
}

// Write saves the answers as a config file at path.
func Write(path string, a Answers) error {
	port, err := strconv.Atoi(a.Port)
	if err != nil {
		return fmt.Errorf("port %q: %w", a.Port, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("credentials", a.Credentials)
	v.Set("language_code", a.LanguageCode)
	v.Set("recorder", a.Recorder)
	v.Set("port", port)
	v.Set("pointer", a.Pointer)
	v.Set("database_url", a.DatabaseURL)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func Run(ctx context.Context, path string) error {
	log.Info("Starting subtitles setup...")

	a := Defaults()
	if err := Form(&a).Run(); err != nil {
		return fmt.Errorf("setup form: %w", err)
	}

	if a.DatabaseURL != "" {
		checkDatabase(ctx, a.DatabaseURL)
	}

	if _, err := os.Stat(path); err == nil {
		overwrite := false
		huh.NewConfirm().
			Title(fmt.Sprintf("Overwrite %s?", path)).
			Value(&overwrite).
			Run()
		if !overwrite {
			log.Info("Keeping existing configuration")
			return nil
		}
	}

	if err := Write(path, a); err != nil {
		return err
	}

	log.Info("Setup completed successfully!", "config", path)
	return nil
}

func checkDatabase(ctx context.Context, url string) {
	pool, _, err := db.OpenDatabase(ctx, url)
	if err == nil {
		pool.Close()
		log.Info("Successfully connected to the database")
		return
	}

	log.Error("Failed to connect to database", "error", err)
	createDB := false
	huh.NewConfirm().
		Title("Do you want to create a local subtitles database?").
		Value(&createDB).
		Run()

	if !createDB {
		return
	}
	if err := createDatabase(); err != nil {
		log.Error("Failed to create database", "error", err)
		return
	}

	pool, _, err = db.OpenDatabase(ctx, url)
	if err != nil {
		log.Error("Failed to connect to the newly created database", "error", err)
		return
	}
	pool.Close()
}

func createDatabase() error {
	log.Info("Creating database...")

	cmd := exec.Command("createdb", "subtitles")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	log.Info("Database created successfully")
	return nil
}
