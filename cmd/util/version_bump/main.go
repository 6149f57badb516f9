// version_bump rewrites config.AppVersion in config/const.go and, with -tag,
// commits the change and creates an annotated release tag.
//
//	go run ./cmd/util/version_bump [-tag] patch|minor|major
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

const constFile = "config/const.go"

var appVersionRe = regexp.MustCompile(`(var AppVersion = ")([^"]*)(")`)

func main() {
	tag := flag.Bool("tag", false, "commit the bump and create a git tag (only on main)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: version_bump [-tag] <patch|minor|major>")
		os.Exit(1)
	}

	if *tag {
		branch, err := currentBranch()
		if err != nil {
			fmt.Println("Error determining current branch:", err)
			os.Exit(1)
		}
		if branch != "main" {
			fmt.Printf("Error: release tags must be created on 'main', not '%s'\n", branch)
			os.Exit(1)
		}
	}

	src, err := os.ReadFile(constFile)
	if err != nil {
		fmt.Println("Error reading", constFile+":", err)
		os.Exit(1)
	}

	updated, next, err := bumpSource(src, flag.Arg(0))
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(constFile, updated, 0644); err != nil {
		fmt.Println("Error writing", constFile+":", err)
		os.Exit(1)
	}
	fmt.Println("Version bumped to", next)

	if *tag {
		if err := commitAndTag(constFile, "v"+next); err != nil {
			fmt.Println("Error tagging release:", err)
			os.Exit(1)
		}
	}
}

// bumpSource replaces the AppVersion literal in src and returns the new version (without "v").
func bumpSource(src []byte, kind string) ([]byte, string, error) {
	m := appVersionRe.FindSubmatch(src)
	if m == nil {
		return nil, "", fmt.Errorf("AppVersion declaration not found")
	}
	next, err := bump(string(m[2]), kind)
	if err != nil {
		return nil, "", err
	}
	out := appVersionRe.ReplaceAll(src, []byte("${1}"+next+"${3}"))
	return out, next, nil
}

// bump increments a MAJOR.MINOR.PATCH version. A leading "v" is accepted.
func bump(current, kind string) (string, error) {
	v := "v" + strings.TrimPrefix(current, "v")
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" || semver.Canonical(v) != v {
		return "", fmt.Errorf("invalid version format: %s", current)
	}

	var major, minor, patch int
	if _, err := fmt.Sscanf(v, "v%d.%d.%d", &major, &minor, &patch); err != nil {
		return "", fmt.Errorf("invalid version format: %s", current)
	}

	switch kind {
	case "patch":
		patch++
	case "minor":
		minor++
		patch = 0
	case "major":
		major++
		minor = 0
		patch = 0
	default:
		return "", fmt.Errorf("invalid bump type: %s", kind)
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch), nil
}

func commitAndTag(file, version string) error {
	steps := [][]string{
		{"git", "add", file},
		{"git", "commit", "-m", "Bump version to " + version},
		{"git", "tag", "-a", version, "-m", "Release " + version},
		{"git", "push", "origin", version},
	}
	for _, args := range steps {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s failed: %w", strings.Join(args[:2], " "), err)
		}
	}
	return nil
}

func currentBranch() (string, error) {
	out, err := exec.Command("git", "branch", "--show-current").Output()
	if err != nil {
		return "", fmt.Errorf("git branch failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
