package publish

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const maxNameLength = 100

// ErrInvalidName is returned for repository names GitHub would refuse.
var ErrInvalidName = errors.New("invalid repository name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var reservedNames = map[string]bool{
	"update": true, "delete": true, "create": true, "new": true, "edit": true,
	"settings": true, "admin": true, "api": true, "www": true, "mail": true,
	"ftp": true, "blog": true, "docs": true, "help": true, "support": true,
	"git": true, "github": true, "gitlab": true, "bitbucket": true,
	"master": true, "main": true,
}

// ValidateName checks a repository name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidName, maxNameLength)
	case reservedNames[strings.ToLower(name)]:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case !namePattern.MatchString(name):
		return fmt.Errorf("%w: only letters, numbers, dots, hyphens and underscores are allowed", ErrInvalidName)
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, "."):
		return fmt.Errorf("%w: name cannot start or end with a dot", ErrInvalidName)
	case strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-"):
		return fmt.Errorf("%w: name cannot start or end with a hyphen", ErrInvalidName)
	}
	return nil
}

// Suggestions returns alternative names for an existing repository, valid ones only.
func Suggestions(name string, now time.Time) []string {
	candidates := []string{
		name + "-Pro",
		name + "-v2",
		fmt.Sprintf("%s-%d", name, now.Unix()),
		name + "-Advanced",
	}

	out := candidates[:0]
	for _, c := range candidates {
		if ValidateName(c) == nil {
			out = append(out, c)
		}
	}
	return out
}
