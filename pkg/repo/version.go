package repo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionType tags a version record as a major or minor revision.
type VersionType string

const (
	VersionMajor VersionType = "MAJOR"
	VersionMinor VersionType = "MINOR"
)

// VersionRecord is one entry in a node's version ledger.
//
// Records are ordered by strictly increasing label. Deleting a record
// never renumbers the survivors.
type VersionRecord struct {
	// ID identifies the record itself.
	ID string `json:"id"`

	// Label is the monotonic "MAJOR.MINOR" label, e.g. "1.0", "1.1", "2.0".
	Label string `json:"versionLabel"`

	// Type records whether this was a major or minor bump.
	Type VersionType `json:"versionType"`

	// ContentRef is the immutable content snapshot frozen by this version.
	// Empty for versions of content-less nodes.
	ContentRef string `json:"contentRef,omitempty"`

	// Comment is the optional checkin comment.
	Comment string `json:"comment,omitempty"`

	// Creator is the principal that triggered the version.
	Creator string `json:"createdByUser"`

	// CreatedAt is the record's creation instant. For the first version of
	// a node this equals the node's original creation timestamp, not the
	// instant versioning was enabled.
	CreatedAt time.Time `json:"createdAt"`
}

// FirstVersionLabel is the label of a node's initial version.
const FirstVersionLabel = "1.0"

// ParseVersionLabel splits a "MAJOR.MINOR" label into its two integers.
func ParseVersionLabel(label string) (major, minor int, err error) {
	parts := strings.SplitN(label, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed version label %q", label)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed version label %q: %w", label, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed version label %q: %w", label, err)
	}
	return major, minor, nil
}

// NextVersionLabel computes the label following current under the ledger's
// arithmetic: a MAJOR bump increments the integer part and resets minor to
// zero; a MINOR bump keeps the major part and increments minor.
func NextVersionLabel(current string, versionType VersionType) (string, error) {
	major, minor, err := ParseVersionLabel(current)
	if err != nil {
		return "", err
	}
	if versionType == VersionMajor {
		return fmt.Sprintf("%d.0", major+1), nil
	}
	return fmt.Sprintf("%d.%d", major, minor+1), nil
}

// CompareVersionLabels orders two labels. Returns -1, 0 or 1.
func CompareVersionLabels(a, b string) int {
	aMajor, aMinor, errA := ParseVersionLabel(a)
	bMajor, bMinor, errB := ParseVersionLabel(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case aMajor != bMajor:
		if aMajor < bMajor {
			return -1
		}
		return 1
	case aMinor != bMinor:
		if aMinor < bMinor {
			return -1
		}
		return 1
	default:
		return 0
	}
}
