package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"go-pgcli/pkg/db"
)

// Options carries the command line values into Start.
type Options struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Database   string
	ConfigFile string
}

// Start reads configuration, prompts for any missing connection field,
// connects, and runs the interactive shell until quit.
func Start(opts Options) error {
	logger := newSessionLogger()

	config, err := ReadClientConfig(opts.ConfigFile)
	if err != nil {
		config = &ClientConfig{}
	}
	merged := MergeConfig(config, opts.Host, opts.Port, opts.Username, opts.Password, opts.Database)

	if err := promptMissing(merged); err != nil {
		return err
	}

	exec := db.NewPostgres()
	session := NewSession(exec, logger, os.Stdout)

	fmt.Println("Connecting to PostgreSQL...")
	ctx := context.Background()
	if err := session.Connect(ctx, db.ConnConfig{
		Host:     merged.Host,
		Port:     merged.Port,
		Database: merged.Database,
		Username: merged.Username,
		Password: merged.Password,
	}); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	showWelcome(session)

	shell := NewShell(session)
	err = shell.Run()
	session.Close(ctx)
	return err
}

// promptMissing asks interactively for each connection field that neither
// the flags nor the config files supplied.
func promptMissing(config *ClientConfig) error {
	reader := bufio.NewReader(os.Stdin)

	if config.Host == "" {
		host, err := promptLine(reader, "Host [localhost]: ")
		if err != nil {
			return err
		}
		if host == "" {
			host = "localhost"
		}
		config.Host = host
	}

	if config.Port == 0 {
		portStr, err := promptLine(reader, "Port [5432]: ")
		if err != nil {
			return err
		}
		if portStr == "" {
			config.Port = 5432
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("invalid port %q", portStr)
			}
			config.Port = port
		}
	}

	if config.Database == "" {
		database, err := promptLine(reader, "Database: ")
		if err != nil {
			return err
		}
		config.Database = database
	}

	if config.Username == "" {
		username, err := promptLine(reader, "Username: ")
		if err != nil {
			return err
		}
		config.Username = username
	}

	if config.Password == "" {
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			// Not a terminal; fall back to a plain read.
			line, rerr := promptLine(reader, "")
			if rerr != nil {
				return rerr
			}
			config.Password = line
		} else {
			config.Password = string(password)
		}
	}

	return nil
}

func promptLine(reader *bufio.Reader, label string) (string, error) {
	if label != "" {
		fmt.Print(label)
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func showWelcome(session *Session) {
	divider := strings.Repeat("=", 60)
	fmt.Println(divider)
	fmt.Println("go-pgcli 1.0.0")
	fmt.Println(divider)
	if id := session.Identity(); id != nil {
		fmt.Printf("Connected to: %s:%d/%s\n", id.Host, id.Port, id.Database)
		fmt.Printf("User: %s\n", id.Username)
	}
	fmt.Println(`Type '\help' for available commands`)
	fmt.Println(`Type '\quit' to exit`)
	fmt.Println(divider)
	fmt.Println()
}

// newSessionLogger writes structured logs to a per-session file under
// logs/. When the file cannot be created, logging is discarded rather
// than polluting the prompt.
func newSessionLogger() *slog.Logger {
	sessionID := fmt.Sprintf("%s_%s",
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8])

	if err := os.MkdirAll("logs", 0o755); err != nil {
		return discardLogger()
	}
	path := filepath.Join("logs", "go-pgcli-"+sessionID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return discardLogger()
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("session started", "session_id", sessionID)
	return logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
