package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
)

// CodeGenerator produces candidate ticket codes.  Uniqueness is enforced
// by the caller against the store; a generator only has to make
// collisions rare.
type CodeGenerator interface {
	Generate(now time.Time) string
}

// Ticket codes are between minCodeLen and maxCodeLen characters.
const (
	minCodeLen = 15
	maxCodeLen = 24

	codeSuffixLen = 12
)

type timestampCode struct{}

// NewCodeGenerator returns the default generator: the millisecond clock in
// upper-case base 36 followed by a random shortuuid suffix, 20 characters
// for any date before the year 2059.
func NewCodeGenerator() CodeGenerator { return timestampCode{} }

func (timestampCode) Generate(now time.Time) string {
	prefix := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return prefix + shortuuid.New()[:codeSuffixLen]
}
