package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"walletapp/internal/config"
	"walletapp/internal/logger"
	"walletapp/internal/tokenstore"
	"walletapp/internal/walletapi"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: wallet <command> [flags]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  register   Create a new account")
	fmt.Fprintln(w, "  login      Start a session")
	fmt.Fprintln(w, "  logout     Drop the local session")
	fmt.Fprintln(w, "  balance    Show the current balance")
	fmt.Fprintln(w, "  history    List transactions")
	fmt.Fprintln(w, "  transfer   Send money to another user")
	fmt.Fprintln(w, "  deposit    Load money from a bank account")
	fmt.Fprintln(w, "  withdraw   Move money to a bank account")
	fmt.Fprintln(w, "  contacts   Manage favorite contacts (list|add|rm)")
}

// app bundles what every subcommand needs.
type app struct {
	client *walletapi.Client
	log    *zap.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errors.New("missing command")
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	store, err := tokenstore.New(cfg.TokenDBPath)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer store.Close()

	a := &app{
		client: walletapi.NewClient(walletapi.Config{
			APIBaseURL:  cfg.APIBaseURL,
			BankBaseURL: cfg.BankBaseURL,
			Tokens:      store,
			Logger:      log,
		}),
		log:    log,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	ctx := context.Background()
	command, rest := args[0], args[1:]
	switch command {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		a.client.Logout()
		fmt.Fprintln(stdout, "Sesión cerrada.")
		return nil
	case "balance":
		return a.balance(ctx)
	case "history":
		return a.history(ctx)
	case "transfer":
		return a.transfer(ctx, rest)
	case "deposit":
		return a.deposit(ctx, rest)
	case "withdraw":
		return a.withdraw(ctx, rest)
	case "contacts":
		return a.contacts(ctx, rest)
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", command)
	}
}

// present maps a client error to what the user gets to see. Malformed
// responses are logged and replaced with a generic message instead of
// leaking transport noise.
func (a *app) present(err error) error {
	var malformed *walletapi.MalformedResponseError
	if errors.As(err, &malformed) {
		a.log.Error("malformed backend response", zap.Error(malformed))
		return errors.New("Ocurrió un error. Por favor, intenta nuevamente.")
	}
	var userFacing walletapi.UserFacing
	if errors.As(err, &userFacing) && userFacing.UserMessage() != "" {
		return errors.New(userFacing.UserMessage())
	}
	return err
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	firstName := fs.String("first", "", "First name")
	lastName := fs.String("last", "", "Last name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := a.passwordOrPrompt(*password)
	if err != nil {
		return err
	}

	user, err := a.client.Register(ctx, *firstName, *lastName, *email, pass)
	if err != nil {
		return a.present(err)
	}
	fmt.Fprintf(a.stdout, "Cuenta creada para %s %s (%s). Ahora podés iniciar sesión.\n",
		user.FirstName, user.LastName, user.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := a.passwordOrPrompt(*password)
	if err != nil {
		return err
	}

	user, err := a.client.Login(ctx, *email, pass)
	if err != nil {
		return a.present(err)
	}
	fmt.Fprintf(a.stdout, "Hola, %s. Saldo disponible: $%s\n", user.FirstName, user.Balance)
	return nil
}

func (a *app) balance(ctx context.Context) error {
	user, err := a.client.GetCurrentUser(ctx)
	if err != nil {
		return a.present(err)
	}
	fmt.Fprintf(a.stdout, "%s %s <%s>\nSaldo disponible: $%s\n",
		user.FirstName, user.LastName, user.Email, user.Balance)
	return nil
}

func (a *app) history(ctx context.Context) error {
	transactions, err := a.client.GetTransactions(ctx)
	if err != nil {
		return a.present(err)
	}
	if len(transactions) == 0 {
		fmt.Fprintln(a.stdout, "No hay transacciones todavía.")
		return nil
	}
	for _, tx := range transactions {
		line := fmt.Sprintf("%s  %-8s  $%s  %s",
			tx.Date.Format("2006-01-02 15:04"), tx.Type, tx.Amount, tx.Description)
		if tx.RecipientEmail != "" {
			line += "  (" + tx.RecipientEmail + ")"
		}
		fmt.Fprintln(a.stdout, line)
	}
	return nil
}

func (a *app) transfer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	to := fs.String("to", "", "Recipient email")
	amountStr := fs.String("amount", "", "Amount to send")
	description := fs.String("desc", "", "Description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := walletapi.ParseAmount(*amountStr)
	if err != nil {
		return a.present(err)
	}

	tx, err := a.client.Transfer(ctx, amount, *to, *description)
	if err != nil {
		return a.present(err)
	}
	fmt.Fprintf(a.stdout, "Transferencia enviada a %s por $%s.\n", tx.RecipientEmail, amount)
	return nil
}

func (a *app) deposit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	cvu := fs.String("cvu", "", "Source bank account CVU (22 digits)")
	amountStr := fs.String("amount", "", "Amount to load")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := walletapi.ParseAmount(*amountStr)
	if err != nil {
		return a.present(err)
	}

	result, err := a.client.DepositMoney(ctx, *cvu, amount)
	if err != nil {
		return a.present(err)
	}
	fmt.Fprintf(a.stdout, "%s Nuevo saldo: $%s\n", result.Message, result.NewBalance)
	return nil
}

func (a *app) withdraw(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	cvu := fs.String("cvu", "", "Destination bank account CVU (22 digits)")
	amountStr := fs.String("amount", "", "Amount to withdraw")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := walletapi.ParseAmount(*amountStr)
	if err != nil {
		return a.present(err)
	}

	result, err := a.client.WithdrawMoney(ctx, *cvu, amount)
	if err != nil {
		return a.present(err)
	}
	fmt.Fprintf(a.stdout, "%s Saldo de la cuenta bancaria: $%s\n", result.Message, result.NewBalance)
	return nil
}

func (a *app) contacts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: wallet contacts <list|add|rm> [flags]")
	}
	switch args[0] {
	case "list":
		contacts, err := a.client.ListContacts(ctx)
		if err != nil {
			return a.present(err)
		}
		if len(contacts) == 0 {
			fmt.Fprintln(a.stdout, "No hay contactos todavía.")
			return nil
		}
		for _, contact := range contacts {
			fmt.Fprintf(a.stdout, "%s  %s %s <%s>\n",
				contact.ID, contact.FirstName, contact.LastName, contact.Email)
		}
		return nil
	case "add":
		fs := flag.NewFlagSet("contacts add", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		firstName := fs.String("first", "", "First name")
		lastName := fs.String("last", "", "Last name")
		email := fs.String("email", "", "Email address")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		contact, err := a.client.AddContact(ctx, *firstName, *lastName, *email)
		if err != nil {
			return a.present(err)
		}
		fmt.Fprintf(a.stdout, "Contacto agregado: %s %s <%s>\n",
			contact.FirstName, contact.LastName, contact.Email)
		return nil
	case "rm":
		fs := flag.NewFlagSet("contacts rm", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		id := fs.String("id", "", "Contact id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := a.client.RemoveContact(ctx, *id); err != nil {
			return a.present(err)
		}
		fmt.Fprintln(a.stdout, "Contacto eliminado.")
		return nil
	default:
		return fmt.Errorf("unknown contacts subcommand %q", args[0])
	}
}

func (a *app) passwordOrPrompt(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.stdout, "Password: ")
	password, err := readPassword(a.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(a.stdout)
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
