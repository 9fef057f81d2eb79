// Package creator defines the common types shared by the creatorscope client.
package creator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
)

// Common errors returned by the transport and the view components.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNotOnPlatform   = errors.New("no profile on this platform")
	ErrNoIdentity      = errors.New("profile has no cross-platform identity")
	ErrSuperseded      = errors.New("superseded by a newer request")
	ErrClosed          = errors.New("view closed")
	ErrLoading         = errors.New("profile is still loading")
	ErrSwitchPending   = errors.New("switch to this platform already in flight")
)

// NotOnPlatformError reports that a linked creator has no profile on a platform.
type NotOnPlatformError struct {
	Identity string
	Platform Platform
}

func (e *NotOnPlatformError) Error() string {
	return fmt.Sprintf("profile not found on %s", e.Platform)
}

// Unwrap lets errors.Is match ErrNotOnPlatform.
func (*NotOnPlatformError) Unwrap() error { return ErrNotOnPlatform }

// Role tags an account as a creator or a brand.
type Role string

// Role constants.
const (
	RoleCreator Role = "creator"
	RoleBrand   Role = "brand"
)

// Metrics holds the server-computed analytics for a profile.
// It is always delivered as a unit.
type Metrics struct {
	EngagementRatePerPost float64 `json:"engagement_rate_per_post"`
	LikeCommentRatio      float64 `json:"like_comment_ratio"`
	PostFrequencyPerWeek  float64 `json:"post_frequency_per_week"`
	SentimentScore        int     `json:"sentiment_score"`
	OverallScore          float64 `json:"overall_score"`
}

// UnmarshalJSON accepts a fractional sentiment score and rounds it into 0-100.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw struct {
		EngagementRatePerPost float64 `json:"engagement_rate_per_post"`
		LikeCommentRatio      float64 `json:"like_comment_ratio"`
		PostFrequencyPerWeek  float64 `json:"post_frequency_per_week"`
		SentimentScore        float64 `json:"sentiment_score"`
		OverallScore          float64 `json:"overall_score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	score := int(math.Round(raw.SentimentScore))
	score = max(0, min(100, score))
	*m = Metrics{
		EngagementRatePerPost: raw.EngagementRatePerPost,
		LikeCommentRatio:      raw.LikeCommentRatio,
		PostFrequencyPerWeek:  raw.PostFrequencyPerWeek,
		SentimentScore:        score,
		OverallScore:          raw.OverallScore,
	}
	return nil
}

// Post is one content item. GoodComments and BadComments are nil when the
// per-comment breakdown is unavailable, which is not the same as zero.
type Post struct {
	ID              string `json:"post_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	PublishedAt     string `json:"published_at"`
	Views           int64  `json:"views"`
	Likes           int64  `json:"likes"`
	CommentsTotal   int64  `json:"comments_total"`
	GoodComments    *int   `json:"good_comments,omitempty"`
	BadComments     *int   `json:"bad_comments,omitempty"`
	Category        string `json:"category"`
	ContentCategory string `json:"content_based_category"`
}

// HasBreakdown reports whether the post carries good/bad comment counts.
func (p Post) HasBreakdown() bool {
	return p.GoodComments != nil && p.BadComments != nil
}

// Normalize fills the missing half of a half-present breakdown with zero.
// It reports whether anything changed.
func (p *Post) Normalize() bool {
	switch {
	case p.GoodComments == nil && p.BadComments != nil:
		p.GoodComments = new(int)
		return true
	case p.GoodComments != nil && p.BadComments == nil:
		p.BadComments = new(int)
		return true
	default:
		return false
	}
}

// WatchURL returns the public link for a youtube post, or "" for other platforms.
func (p Post) WatchURL(platform Platform) string {
	if platform != YouTube || p.ID == "" {
		return ""
	}
	return "https://youtu.be/" + url.PathEscape(p.ID)
}

// ThumbnailURL returns the medium thumbnail for a youtube post, or "".
func (p Post) ThumbnailURL(platform Platform) string {
	if platform != YouTube || p.ID == "" {
		return ""
	}
	return "https://img.youtube.com/vi/" + url.PathEscape(p.ID) + "/mqdefault.jpg"
}

// Profile is one creator's presence on one platform.
//
// ID is unique per (platform, account). Identity, when present, is shared by
// every record that belongs to the same logical creator.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	Identity   string   `json:"creatorId,omitempty"` // Cross-platform identity (optional)
	ID         string   `json:"_id"`                 // Platform-scoped record id
	Name       string   `json:"name"`
	Username   string   `json:"username"`
	Bio        string   `json:"bio"`
	AvatarURL  string   `json:"profile_pic_url"`
	Platform   Platform `json:"platform"`
	PlatformID string   `json:"platform_id"` // Platform-native account id
	Followers  int64    `json:"followers"`
	Metrics    Metrics  `json:"metrics"`
	Posts      []Post   `json:"posts"`
	Role       Role     `json:"user_type,omitempty"`
}

// DirectoryEntry is the list-view projection of a Profile.
type DirectoryEntry = Profile

// Linked reports whether the profile has a cross-platform identity.
func (p *Profile) Linked() bool {
	return p != nil && p.Identity != ""
}

// Avatar returns the avatar URL, falling back to a generated placeholder.
func (p *Profile) Avatar() string {
	if p.AvatarURL != "" {
		return p.AvatarURL
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(p.Name)
}

// SessionUser is the authenticated actor.
type SessionUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"user_type"`
	Connected bool   `json:"isFBGraphConnected,omitempty"` // External (Instagram Graph) connection
}

// AggregateStats are global counters shown on the dashboard.
type AggregateStats struct {
	Creators int64 `json:"total_creators"`
	Brands   int64 `json:"total_brands"`
	Users    int64 `json:"total_users"`
}
