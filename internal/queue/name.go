package queue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	timeWidth = 16
	seqWidth  = 6
	maxSeq    = 999999
)

// entry is a parsed event filename.
type entry struct {
	name        string
	enqueuedAt  time.Time
	destination string
}

// eventName builds <time_us>[~<seq>]_<destination>. Zero padding keeps
// lexical order equal to enqueue order, and '_' < '~' places an
// undisambiguated name ahead of its collided successors.
func eventName(us int64, seq int, destination string) string {
	if seq == 0 {
		return fmt.Sprintf("%0*d_%s", timeWidth, us, destination)
	}
	return fmt.Sprintf("%0*d~%0*d_%s", timeWidth, us, seqWidth, seq, destination)
}

func parseName(name string) (entry, error) {
	i := strings.IndexByte(name, '_')
	if i <= 0 || i == len(name)-1 {
		return entry{}, errors.Wrap(ErrMalformedName, name)
	}
	stamp := name[:i]
	if j := strings.IndexByte(stamp, '~'); j >= 0 {
		if !isDigits(stamp[j+1:]) {
			return entry{}, errors.Wrap(ErrMalformedName, name)
		}
		stamp = stamp[:j]
	}
	if !isDigits(stamp) {
		return entry{}, errors.Wrap(ErrMalformedName, name)
	}
	us, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return entry{}, errors.Wrap(ErrMalformedName, name)
	}
	return entry{
		name:        name,
		enqueuedAt:  time.UnixMicro(us).UTC(),
		destination: name[i+1:],
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validDestination rejects ids that cannot live inside a filename.
func validDestination(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return errors.Wrapf(ErrInvalidDestination, "%q", id)
	}
	return nil
}
