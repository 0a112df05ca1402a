package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// promptPassword reads a password from the terminal without echo. The
// caller should wipe the result.
func promptPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// promptNewPassword asks for a password twice.
func promptNewPassword(w io.Writer) (string, error) {
	pw, err := promptPassword(w, "Password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)

	confirm, err := promptPassword(w, "Confirm password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return "", errPasswordMismatch
	}
	return string(pw), nil
}
