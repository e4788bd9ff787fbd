package merge

import (
	"github.com/pkg/errors"

	"github.com/podmerge/podmerge/pkg/model"
)

// Policy decides which version of an entry survives when both feeds carry the same identifier.
type Policy string

const (
	// PolicyRicher keeps the authorized entry when it has a description or
	// an enclosure the public one lacks, otherwise the public entry.
	PolicyRicher = Policy("richer")
	// PolicyPublic always keeps the public entry.
	PolicyPublic = Policy("public")
	// PolicyAuthorized always keeps the authorized entry.
	PolicyAuthorized = Policy("authorized")
	// PolicyFill keeps the public entry and fills its empty fields from the authorized one.
	PolicyFill = Policy("fill")
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyRicher, PolicyPublic, PolicyAuthorized, PolicyFill:
		return p, nil
	case "":
		return PolicyRicher, nil
	default:
		return "", errors.Errorf("unknown merge policy %q", s)
	}
}

func (p Policy) resolve(public, authorized model.Entry) model.Entry {
	switch p {
	case PolicyPublic:
		return public
	case PolicyAuthorized:
		return authorized
	case PolicyFill:
		return fill(public, authorized)
	default:
		if richer(authorized, public) {
			return authorized
		}
		return public
	}
}

// richer reports whether a fills a gap in b.
func richer(a, b model.Entry) bool {
	if a.Description != "" && b.Description == "" {
		return true
	}
	return !a.Enclosure.IsZero() && b.Enclosure.IsZero()
}

func fill(dst, src model.Entry) model.Entry {
	str := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}

	str(&dst.Title, src.Title)
	str(&dst.Link, src.Link)
	str(&dst.Description, src.Description)
	str(&dst.Content, src.Content)
	str(&dst.Author, src.Author)
	str(&dst.Image, src.Image)
	str(&dst.Duration, src.Duration)
	str(&dst.Explicit, src.Explicit)
	str(&dst.Season, src.Season)
	str(&dst.Episode, src.Episode)
	str(&dst.EpisodeType, src.EpisodeType)

	dst.Published = dst.Published.Or(src.Published)
	dst.Updated = dst.Updated.Or(src.Updated)

	if dst.Enclosure.IsZero() {
		dst.Enclosure = src.Enclosure
	}

	return dst
}
