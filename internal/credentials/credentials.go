package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"cms-downloader/internal/cms"

	"golang.org/x/term"
)

var ErrNoCredentials = errors.New("no stored credentials")

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s:%s", c.Username, strings.Repeat("*", len(c.Password)))
}

func (c Credentials) empty() bool {
	return c.Username == "" || c.Password == ""
}

// Store keeps credentials in a file, the username on the first line and the
// password on the second.
type Store struct {
	Path string
}

func (s Store) Load() (Credentials, error) {
	contents, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, err
	}

	lines := strings.Split(strings.ReplaceAll(string(contents), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return Credentials{}, ErrNoCredentials
	}
	creds := Credentials{
		Username: strings.TrimSpace(lines[0]),
		Password: strings.TrimSpace(lines[1]),
	}
	if creds.empty() {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

func (s Store) Save(creds Credentials) error {
	return os.WriteFile(s.Path, []byte(creds.Username+"\n"+creds.Password), 0600)
}

func (s Store) Remove() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type Prompter interface {
	Prompt(ctx context.Context) (Credentials, error)
}

// TerminalPrompter asks for the username and password, the password is not
// echoed when `In` is a terminal.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

func NewTerminalPrompter() TerminalPrompter {
	return TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p TerminalPrompter) Prompt(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}
	reader := bufio.NewReader(p.In)

	fmt.Fprint(p.Out, "CMS Username: ")
	username, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || username == "") {
		return Credentials{}, fmt.Errorf("read username: %w", err)
	}

	fmt.Fprint(p.Out, "CMS Password: ")
	var password string
	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	} else {
		password, err = reader.ReadString('\n')
		if err != nil && (err != io.EOF || password == "") {
			return Credentials{}, fmt.Errorf("read password: %w", err)
		}
	}

	return Credentials{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}, nil
}

// Acquire returns the stored credentials when there are any. Otherwise it
// prompts for credentials and checks them with `verify` until they are
// accepted or `maxAttempts` is exhausted, accepted credentials are saved.
func Acquire(
	ctx context.Context,
	store Store,
	prompter Prompter,
	verify func(ctx context.Context, creds Credentials) error,
	maxAttempts int,
) (Credentials, error) {
	creds, err := store.Load()
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, ErrNoCredentials) {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		creds, err := prompter.Prompt(ctx)
		if err != nil {
			return Credentials{}, fmt.Errorf("prompt credentials: %w", err)
		}
		if creds.empty() {
			lastErr = fmt.Errorf("username and password must not be empty: %w", cms.ErrAuthentication)
			continue
		}

		err = verify(ctx, creds)
		if errors.Is(err, cms.ErrAuthentication) {
			lastErr = err
			continue
		}
		if err != nil {
			return Credentials{}, err
		}

		err = store.Save(creds)
		if err != nil {
			return Credentials{}, fmt.Errorf("save credentials: %w", err)
		}
		return creds, nil
	}

	return Credentials{}, lastErr
}
