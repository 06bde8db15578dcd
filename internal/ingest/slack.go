package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/fetch"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

func (in *Ingestor) ingestSlack(ctx context.Context, ref *platform.ThreadRef) (*store.Thread, error) {
	teamID := ref.TeamID
	channelID := ref.ChannelID
	threadTS := ref.ThreadTS

	ws, err := in.store.EnsureWorkspace(ctx, platform.Slack, teamID)
	if err != nil {
		return nil, err
	}
	ch, err := in.store.EnsureChannel(ctx, ws, platform.Slack, channelID, store.ChannelAttrs{
		ParentResourceID: teamID,
		Metadata:         map[string]any{"team_id": teamID},
	})
	if err != nil {
		return nil, err
	}
	th, err := in.store.EnsureThread(ctx, ws, ch, platform.Slack, threadTS, store.ThreadAttrs{
		SourceParentID: channelID,
		SourceURL:      fetch.SlackPermalink(teamID, channelID, threadTS),
	})
	if err != nil {
		return nil, err
	}

	messages, err := in.slack.ConversationsReplies(ctx, channelID, threadTS)
	if err != nil {
		return nil, fmt.Errorf("fetching thread %s: %w", threadTS, err)
	}
	in.log.Debug("fetched slack thread",
		zap.String("channel", channelID),
		zap.String("thread_ts", threadTS),
		zap.Int("messages", len(messages)))

	userCache := map[string]*store.User{}
	for _, msg := range messages {
		user, err := in.slackUser(ctx, ws, msg, userCache)
		if err != nil {
			return nil, err
		}

		parentID := ""
		if msg.ThreadTS != "" && msg.ThreadTS != msg.TS {
			parentID = msg.ThreadTS
		}

		reactions := map[string]int{}
		for _, r := range msg.Reactions {
			reactions[r.Name] = r.Count
		}

		m := &store.Message{
			ThreadID:    th.ID,
			Platform:    platform.Slack,
			SourceMsgID: msg.TS,
			ParentMsgID: parentID,
			Text:        msg.Text,
			Reactions:   reactions,
			Metadata: map[string]any{
				"team_id":    teamID,
				"channel_id": channelID,
				"permalink":  fetch.SlackPermalink(teamID, channelID, msg.TS),
				"thread_ts":  msg.ThreadTS,
			},
			CreatedAt: slackTime(msg.TS),
		}
		if user != nil {
			m.AuthorUserID = &user.ID
		}
		if err := in.store.UpsertMessage(ctx, m); err != nil {
			return nil, err
		}
	}
	return th, nil
}

// slackUser resolves and persists a message author. Profile lookups are
// only attempted for real user ids (U-prefixed); a failed lookup
// degrades to the native id as the display name rather than failing
// the run.
func (in *Ingestor) slackUser(ctx context.Context, ws *store.Workspace, msg fetch.SlackMessage, cache map[string]*store.User) (*store.User, error) {
	userID := msg.User
	if userID == "" {
		userID = msg.BotID
	}
	if userID == "" {
		return nil, nil
	}
	if u, ok := cache[userID]; ok {
		return u, nil
	}

	displayName := userID
	email := ""
	if strings.HasPrefix(userID, "U") {
		if profile, err := in.slack.UserInfo(ctx, userID); err == nil {
			if name := profile.Name(); name != "" {
				displayName = name
			}
			email = profile.Email
		} else {
			in.log.Warn("slack profile lookup failed",
				zap.String("user", userID), zap.Error(err))
		}
	}

	u, err := in.store.EnsureUser(ctx, ws, platform.Slack, userID, displayName, store.UserAttrs{Email: email})
	if err != nil {
		return nil, err
	}
	if u != nil {
		cache[userID] = u
	}
	return u, nil
}

// slackTime converts a Slack timestamp ("1726000000.000100") to UTC time,
// preserving the fractional part.
func slackTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || f <= 0 {
		return time.Now().UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
