package access

import (
	"errors"
	"os"
	"os/user"
	"strings"

	"github.com/rzbill/dashgate/pkg/utils"
)

// ErrPrincipalUnresolved is returned when no username can be determined.
var ErrPrincipalUnresolved = errors.New("could not determine the current user")

// principalLookup is swapped in tests.
type principalLookup struct {
	current func() (*user.User, error)
	getenv  func(string) string
}

var defaultLookup = principalLookup{current: user.Current, getenv: os.Getenv}

// ResolvePrincipal returns the OS username of the current process, without
// any DOMAIN\ prefix. The USER, USERNAME, and LOGNAME variables are used when
// the user database cannot be read.
func ResolvePrincipal() (string, error) {
	return defaultLookup.resolve()
}

func (l principalLookup) resolve() (string, error) {
	var name string
	if u, err := l.current(); err == nil && u != nil {
		name = u.Username
	}
	name = utils.PickFirstNonEmpty(stripDomain(name),
		stripDomain(l.getenv("USER")),
		stripDomain(l.getenv("USERNAME")),
		stripDomain(l.getenv("LOGNAME")))
	if name == "" {
		return "", ErrPrincipalUnresolved
	}
	return name, nil
}

func stripDomain(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}
