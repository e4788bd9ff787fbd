// Package merge combines the public and the authorized feed into one.
package merge

import (
	"sort"

	"github.com/podmerge/podmerge/pkg/model"
)

// Merge builds the union of both feeds' entries, resolving shared identifiers
// with policy, and orders the result newest first with ties broken by identifier.
// Either feed may be nil or empty. Inputs are not modified.
func Merge(public, authorized *model.Feed, policy Policy) *model.MergedFeed {
	if public == nil {
		public = &model.Feed{Source: model.SourcePublic}
	}
	if authorized == nil {
		authorized = &model.Feed{Source: model.SourceAuthorized}
	}

	var (
		entries = make([]model.Entry, 0, len(public.Entries)+len(authorized.Entries))
		index   = make(map[string]int, cap(entries))
	)

	for _, e := range public.Entries {
		if _, ok := index[e.ID]; ok {
			// Duplicate within the same feed, first one wins
			continue
		}
		index[e.ID] = len(entries)
		entries = append(entries, e)
	}

	seen := make(map[string]struct{}, len(authorized.Entries))
	for _, e := range authorized.Entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}

		if i, ok := index[e.ID]; ok {
			entries[i] = policy.resolve(entries[i], e)
			continue
		}
		index[e.ID] = len(entries)
		entries = append(entries, e)
	}

	Sort(entries)

	return &model.MergedFeed{
		Metadata: Metadata(public.Metadata, authorized.Metadata),
		Entries:  entries,
	}
}

// Sort orders entries by publication time descending, then identifier ascending.
// Entries without a publication time sort as if published at Unix epoch.
func Sort(entries []model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Published.SortKey(), entries[j].Published.SortKey()
		if !a.Equal(b) {
			return a.After(b)
		}
		return entries[i].ID < entries[j].ID
	})
}

// Metadata takes every field from the public feed, falling back to the authorized one when empty.
func Metadata(public, authorized model.Metadata) model.Metadata {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}

	out := model.Metadata{
		Title:       pick(public.Title, authorized.Title),
		Description: pick(public.Description, authorized.Description),
		Link:        pick(public.Link, authorized.Link),
		Language:    pick(public.Language, authorized.Language),
		Copyright:   pick(public.Copyright, authorized.Copyright),
		Author:      pick(public.Author, authorized.Author),
		OwnerName:   pick(public.OwnerName, authorized.OwnerName),
		OwnerEmail:  pick(public.OwnerEmail, authorized.OwnerEmail),
		Explicit:    pick(public.Explicit, authorized.Explicit),
		Type:        pick(public.Type, authorized.Type),
		Updated:     public.Updated.Or(authorized.Updated),
		Image:       public.Image,
	}

	if out.Image.IsZero() {
		out.Image = authorized.Image
	}

	categories := public.Categories
	if len(categories) == 0 {
		categories = authorized.Categories
	}
	if len(categories) > 0 {
		out.Categories = append([]string(nil), categories...)
	}

	return out
}
