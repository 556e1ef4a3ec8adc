package youtube

import (
	"strconv"
	"time"

	"github.com/replyloop/replyloop/internal/source"
)

// --- Data API wire types (unexported, serialization only) ---

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelID    string `json:"channelId"`
		ChannelTitle string `json:"channelTitle"`
		Description  string `json:"description"`
		PublishedAt  string `json:"publishedAt"`
	} `json:"snippet"`
	// The Data API serializes statistics counters as strings.
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}

type commentThreadListResponse struct {
	Items         []commentThreadItem `json:"items"`
	NextPageToken string              `json:"nextPageToken"`
}

type commentThreadItem struct {
	Snippet struct {
		TopLevelComment struct {
			ID      string `json:"id"`
			Snippet struct {
				AuthorDisplayName string `json:"authorDisplayName"`
				AuthorChannelID   struct {
					Value string `json:"value"`
				} `json:"authorChannelId"`
				TextOriginal string `json:"textOriginal"`
				TextDisplay  string `json:"textDisplay"`
				LikeCount    int64  `json:"likeCount"`
				PublishedAt  string `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

type commentInsertRequest struct {
	Snippet struct {
		ParentID     string `json:"parentId"`
		TextOriginal string `json:"textOriginal"`
	} `json:"snippet"`
}

// --- Converters ---

func (v videoItem) toVideo() source.Video {
	out := source.Video{
		ID:           v.ID,
		Title:        v.Snippet.Title,
		ChannelID:    v.Snippet.ChannelID,
		ChannelTitle: v.Snippet.ChannelTitle,
		Description:  v.Snippet.Description,
	}
	out.PublishedAt = parseTimestamp(v.Snippet.PublishedAt)
	out.ViewCount, _ = strconv.ParseInt(v.Statistics.ViewCount, 10, 64)
	out.CommentCount, _ = strconv.ParseInt(v.Statistics.CommentCount, 10, 64)
	return out
}

func (c commentThreadItem) toComment(videoID string) source.Comment {
	top := c.Snippet.TopLevelComment
	text := top.Snippet.TextOriginal
	if text == "" {
		text = top.Snippet.TextDisplay
	}
	return source.Comment{
		ID:          top.ID,
		VideoID:     videoID,
		Author:      top.Snippet.AuthorDisplayName,
		AuthorID:    top.Snippet.AuthorChannelID.Value,
		Text:        text,
		LikeCount:   top.Snippet.LikeCount,
		PublishedAt: parseTimestamp(top.Snippet.PublishedAt),
	}
}

// parseTimestamp parses an RFC 3339 timestamp, returning the zero time for
// anything malformed rather than failing the whole page.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
