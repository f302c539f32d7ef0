//go:build integration

package itest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const modulePath = "github.com/forPelevin/vid2gif"

// findRepoRoot walks up from the working directory to the go.mod that
// declares this module, so `go run ./cmd/vid2gif` resolves.
func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		mod := filepath.Join(wd, "go.mod")
		if _, err := os.Stat(mod); err == nil {
			name, err := moduleName(mod)
			if err != nil {
				return "", err
			}
			if name != modulePath {
				return "", fmt.Errorf("%s declares %q, want %q", mod, name, modulePath)
			}
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			return "", errors.New("could not locate go.mod")
		}
		wd = parent
	}
}

func moduleName(goMod string) (string, error) {
	f, err := os.Open(goMod)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "module "); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s has no module directive", goMod)
}
