package logic

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/term"

	"github.com/idelchi/foldercrypt/internal/config"
)

const minPasswordLength = 8

// resolvePassword picks the password from the flag or environment, the password file,
// or an interactive prompt, in that order.
func resolvePassword(
	fsys afero.Fs,
	cfg *config.Config,
	log zerolog.Logger,
	prompt func(confirm bool) (string, error),
) (string, error) {
	switch {
	case cfg.Password != "":
		if cfg.PasswordFromFlag {
			log.Warn().Msg("--password is visible to other users of this machine, prefer --password-file or FOLDERCRYPT_PASSWORD")
		}

		return cfg.Password, nil
	case cfg.PasswordFile != "":
		data, err := afero.ReadFile(fsys, cfg.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}

		password := strings.TrimRight(string(data), "\r\n")
		if password == "" {
			return "", fmt.Errorf("password file %q is empty", cfg.PasswordFile)
		}

		return password, nil
	default:
		return prompt(cfg.Mode == config.Encrypt)
	}
}

// promptPassword reads a password from the terminal without echo,
// asking twice when confirm is set.
func promptPassword(confirm bool) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int

	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal: use --password-file or FOLDERCRYPT_PASSWORD")
	}

	fmt.Fprint(os.Stderr, "Enter password: ")

	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if len(first) == 0 {
		return "", errors.New("empty password is not allowed")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm password: ")

		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("reading password confirmation: %w", err)
		}

		if subtle.ConstantTimeCompare(first, second) != 1 {
			return "", errors.New("passwords do not match")
		}
	}

	return string(first), nil
}

// checkStrength rejects passwords shorter than minPasswordLength and grades the rest.
func checkStrength(password string) (bool, string) {
	length := len([]rune(password))

	if length < minPasswordLength {
		return false, fmt.Sprintf("password must be at least %d characters long", minPasswordLength)
	}

	const strongLength = 12

	if length < strongLength {
		return true, "password is weak but acceptable"
	}

	var upper, lower, digit, special bool

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	score := 0

	for _, has := range []bool{upper, lower, digit, special} {
		if has {
			score++
		}
	}

	switch {
	case score >= 3:
		return true, "password is strong"
	case score == 2:
		return true, "password is moderate"
	default:
		return true, "password is weak but acceptable"
	}
}
