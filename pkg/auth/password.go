package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinPasswordLen    = 8
	MaxPasswordLen    = 72 // bcrypt input limit, in bytes
)

// DefaultSymbols is the punctuation set accepted for the symbol rule.
const DefaultSymbols = "!@#$%^&*()_+-=[]{};:'\",.<>?/\\|`~"

// PolicyRule names a single password requirement.
type PolicyRule string

const (
	RuleMinLength PolicyRule = "min_length"
	RuleMaxLength PolicyRule = "max_length"
	RuleUppercase PolicyRule = "uppercase"
	RuleLowercase PolicyRule = "lowercase"
	RuleDigit     PolicyRule = "digit"
	RuleSymbol    PolicyRule = "symbol"
)

// ErrPolicyViolation is matched by every *PasswordPolicyError.
var ErrPolicyViolation = errors.New("password does not meet policy")

// PasswordPolicyError lists every rule a candidate password failed.
type PasswordPolicyError struct {
	Violations []PolicyRule
	messages   []string
}

func (e *PasswordPolicyError) Error() string {
	if len(e.messages) == 0 {
		return ErrPolicyViolation.Error()
	}
	return "password " + strings.Join(e.messages, "; ")
}

func (e *PasswordPolicyError) Is(target error) bool {
	return target == ErrPolicyViolation
}

// Messages returns the human readable reasons, one per violated rule.
func (e *PasswordPolicyError) Messages() []string {
	return append([]string(nil), e.messages...)
}

// Has reports whether rule is among the violations.
func (e *PasswordPolicyError) Has(rule PolicyRule) bool {
	for _, v := range e.Violations {
		if v == rule {
			return true
		}
	}
	return false
}

// PasswordPolicy checks length and character-class rules. The zero value is not
// usable; build one with DefaultPasswordPolicy or fill every field.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
	Symbols   string
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength: MinPasswordLen,
		MaxLength: MaxPasswordLen,
		Symbols:   DefaultSymbols,
	}
}

// Validate returns nil or a *PasswordPolicyError naming every violated rule.
func (p PasswordPolicy) Validate(candidate string) error {
	violation := &PasswordPolicyError{}
	add := func(rule PolicyRule, msg string) {
		violation.Violations = append(violation.Violations, rule)
		violation.messages = append(violation.messages, msg)
	}

	length := len([]rune(candidate))
	if length < p.MinLength {
		add(RuleMinLength, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && len(candidate) > p.MaxLength {
		add(RuleMaxLength, fmt.Sprintf("must be at most %d bytes", p.MaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(p.Symbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		add(RuleUppercase, "must contain at least one uppercase letter")
	}
	if !hasLower {
		add(RuleLowercase, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		add(RuleDigit, "must contain at least one digit")
	}
	if !hasSymbol {
		add(RuleSymbol, "must contain at least one special character")
	}

	if len(violation.Violations) > 0 {
		return violation
	}
	return nil
}

// Hasher wraps bcrypt. The cost is embedded in every digest, so digests made
// under an older cost still verify after the configured cost changes.
type Hasher struct {
	Cost int

	dummyOnce   sync.Once
	dummyDigest []byte
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{Cost: cost}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify reports whether plaintext matches digest. Malformed digests never match.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// DummyVerify spends one comparison at the configured cost so that an unknown
// username takes as long as a wrong password.
func (h *Hasher) DummyVerify(plaintext string) {
	h.dummyOnce.Do(func() {
		seed := make([]byte, 32)
		_, _ = rand.Read(seed)
		// bcrypt rejects inputs over 72 bytes; 32 is safe
		h.dummyDigest, _ = bcrypt.GenerateFromPassword(seed, h.Cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyDigest, []byte(plaintext))
}

// DigestCost returns the work factor recorded inside digest.
func DigestCost(digest string) (int, error) {
	return bcrypt.Cost([]byte(digest))
}
