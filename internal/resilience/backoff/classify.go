package backoff

import "strings"

// Category describes whether a failure is worth retrying.
type Category int

const (
	CategoryTransient Category = iota // Retry with backoff
	CategoryPermanent                 // Retrying cannot help
)

// Classifier maps an error to a failure category.
type Classifier func(err error) Category

// DefaultClassifier treats everything as transient except errors that name a
// condition retrying cannot fix (bad input, auth, not found).
func DefaultClassifier() Classifier {
	permanentPatterns := []string{
		"invalid",
		"malformed",
		"unauthorized",
		"forbidden",
		"not found",
		"permission denied",
	}

	return func(err error) Category {
		if err == nil {
			return CategoryTransient
		}

		msg := strings.ToLower(err.Error())
		for _, pattern := range permanentPatterns {
			if strings.Contains(msg, pattern) {
				return CategoryPermanent
			}
		}

		return CategoryTransient
	}
}
