//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	appName = "payments-server"
)

var Default = Dev

// Dev runs the API server with go run after tidying modules.
func Dev() error {
	mg.Deps(Tidy)
	fmt.Println("Running (go run) ./cmd/server ...")
	return sh.RunV("go", "run", "./cmd/server")
}

// Build produces static binaries for the server and the reconcile CLI.
func Build() error {
	mg.Deps(Tidy)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	env := map[string]string{"CGO_ENABLED": "0"}
	targets := map[string]string{
		appName:     "./cmd/server",
		"reconcile": "./cmd/reconcile",
		"mockbank":  "./cmd/tools/mockbank",
	}
	for name, pkg := range targets {
		out := filepath.Join(binDir, name+exeSuffix())
		fmt.Println("Building:", out)
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", out, pkg); err != nil {
			return err
		}
	}
	return nil
}

func Test() error {
	fmt.Println("Testing...")
	return sh.RunV("go", "test", "./...", "-count=1")
}

func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func Clean() error {
	return sh.Rm(binDir)
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
