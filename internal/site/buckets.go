package site

import (
	"cmp"
	"slices"

	"git.home.luguber.info/inful/blogbuilder/internal/post"
)

// YearBucket holds the posts of one publication year, newest first.
type YearBucket struct {
	Year  string
	Posts []post.Post
}

// Buckets groups posts by year. Buckets are ordered by year descending;
// posts within a bucket by PublishedAt descending with ties kept in Seq order.
func Buckets(posts []post.Post) []YearBucket {
	byYear := map[string][]post.Post{}
	for _, p := range posts {
		byYear[p.Year] = append(byYear[p.Year], p)
	}

	buckets := make([]YearBucket, 0, len(byYear))
	for year, ps := range byYear {
		slices.SortStableFunc(ps, func(a, b post.Post) int {
			if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.Seq, b.Seq)
		})
		buckets = append(buckets, YearBucket{Year: year, Posts: ps})
	}
	slices.SortFunc(buckets, func(a, b YearBucket) int {
		return cmp.Compare(b.Year, a.Year)
	})
	return buckets
}
