// Command inspect reads and seeds a chat Badger database offline.
//
//	inspect dump -db ./data -prefix user:
//	inspect add-user -db ./data -index ./index -name "Ada" -email ada@example.com -password 'S3cret!pass'
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"my-chat-backend/auth"
	"my-chat-backend/domain"
	"my-chat-backend/repositories"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: inspect <dump|add-user> [flags]")
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "dump":
		err = dump(os.Args[2:])
	case "add-user":
		err = addUser(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		log.Fatal(err)
	}
}

func dump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dbPath := fs.String("db", database.DefaultPath, "Path to badger DB")
	prefix := fs.String("prefix", "", "Prefix to scan, every key when empty")
	_ = fs.Parse(args)

	db, err := openDB(*dbPath, true)
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Size", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = repositories.Dump(context.Background(), db, *prefix, func(r repositories.Record) {
		table.Append([]string{r.Key, r.Kind, strconv.Itoa(r.Size), r.Detail})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func addUser(args []string) error {
	fs := flag.NewFlagSet("add-user", flag.ExitOnError)
	dbPath := fs.String("db", database.DefaultPath, "Path to badger DB")
	indexPath := fs.String("index", "", "Path to the bluge user index, skipped when empty")
	name := fs.String("name", "", "Full name")
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "Secret used to sign the printed token")
	duration := fs.Duration("token-duration", 24*time.Hour, "Validity of the printed token")
	_ = fs.Parse(args)

	creds := auth.Credentials{FullName: *name, Email: *email, Password: *password}
	if err := auth.ValidateCredentials(creds); err != nil {
		return err
	}
	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return err
	}

	db, err := openDB(*dbPath, false)
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromLevel(slog.LevelWarn)
	var index *repositories.UserIndex
	if *indexPath != "" {
		writer, err := bluge.OpenWriter(bluge.DefaultConfig(*indexPath))
		if err != nil {
			return fmt.Errorf("failed to open bluge writer: %w", err)
		}
		defer writer.Close()
		index = repositories.NewUserIndex(writer, logger)
	}

	user, err := repositories.NewUserRepository(db, logger, index).Create(context.Background(), domain.User{
		FullName:     creds.FullName,
		Email:        creds.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" User created "), user.ID)
	if *secret != "" {
		token, err := auth.NewTokens(*secret, *duration).Generate(user.ID)
		if err != nil {
			return err
		}
		fmt.Println(color.New(color.FgCyan).Render("Bearer token:"), token)
	}
	return nil
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(readOnly).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}
