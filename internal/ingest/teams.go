package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/fetch"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

func (in *Ingestor) ingestTeams(ctx context.Context, ref *platform.ThreadRef) (*store.Thread, error) {
	workspaceKey := ref.TenantID
	if workspaceKey == "" {
		workspaceKey = ref.TeamID
	}
	if workspaceKey == "" {
		workspaceKey = ref.ChatID
	}
	ws, err := in.store.EnsureWorkspace(ctx, platform.MSTeams, workspaceKey)
	if err != nil {
		return nil, err
	}

	var base, externalID, parentResource string
	var channelMeta map[string]any
	if ref.ConversationType == "chat" {
		base = fmt.Sprintf("%s/chats/%s/messages", fetch.GraphBaseURL, ref.ChatID)
		externalID = ref.ChatID
		parentResource = ref.ChatID
		channelMeta = map[string]any{"conversation_type": "chat"}
	} else {
		base = fmt.Sprintf("%s/teams/%s/channels/%s/messages", fetch.GraphBaseURL, ref.TeamID, ref.ChannelID)
		externalID = ref.ChannelID
		parentResource = ref.TeamID
		channelMeta = map[string]any{"team_id": ref.TeamID, "conversation_type": "channel"}
	}

	ch, err := in.store.EnsureChannel(ctx, ws, platform.MSTeams, externalID, store.ChannelAttrs{
		ParentResourceID: parentResource,
		Metadata:         channelMeta,
	})
	if err != nil {
		return nil, err
	}

	messageID := ref.MessageID
	root, err := in.graph.Get(ctx, base+"/"+messageID)
	if err != nil {
		return nil, fmt.Errorf("fetching root message %s: %w", messageID, err)
	}
	replies, err := in.graph.List(ctx, base+"/"+messageID+"/replies", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching replies for %s: %w", messageID, err)
	}
	payloads := append([]map[string]any{root}, replies...)
	in.log.Debug("fetched teams thread",
		zap.String("message_id", messageID),
		zap.Int("messages", len(payloads)))

	th, err := in.store.EnsureThread(ctx, ws, ch, platform.MSTeams, messageID, store.ThreadAttrs{
		SourceParentID: externalID,
		SourceURL:      getString(root, "webUrl"),
	})
	if err != nil {
		return nil, err
	}

	for _, payload := range payloads {
		from := getMap(payload, "from")
		userInfo := getMap(from, "user")
		app := getMap(from, "application")

		nativeUserID := getString(userInfo, "id")
		if nativeUserID == "" {
			nativeUserID = getString(app, "id")
		}
		displayName := getString(userInfo, "displayName")
		if displayName == "" {
			displayName = getString(app, "displayName")
		}
		email := getString(userInfo, "email")
		if email == "" {
			email = getString(userInfo, "userPrincipalName")
		}

		user, err := in.store.EnsureUser(ctx, ws, platform.MSTeams, nativeUserID, displayName, store.UserAttrs{Email: email})
		if err != nil {
			return nil, err
		}

		body := getString(getMap(payload, "body"), "content")
		text := htmlToText(body)

		reactions := map[string]int{}
		if raw, ok := payload["reactions"].([]any); ok {
			for _, r := range raw {
				reaction, ok := r.(map[string]any)
				if !ok {
					continue
				}
				key := getString(reaction, "reactionType")
				if key == "" {
					key = "other"
				}
				reactions[key]++
			}
		}

		// A reply carries replyToId; the root does not. Replies missing
		// an explicit parent still hang off the thread root.
		nativeID := getString(payload, "id")
		parentID := getString(payload, "replyToId")
		if parentID == "" && nativeID != messageID {
			parentID = messageID
		}

		m := &store.Message{
			ThreadID:    th.ID,
			Platform:    platform.MSTeams,
			SourceMsgID: nativeID,
			ParentMsgID: parentID,
			Text:        text,
			Reactions:   reactions,
			Metadata: map[string]any{
				"webUrl":               getString(payload, "webUrl"),
				"raw_html":             body,
				"createdDateTime":      getString(payload, "createdDateTime"),
				"lastModifiedDateTime": getString(payload, "lastModifiedDateTime"),
			},
			CreatedAt: parseGraphTime(getString(payload, "createdDateTime")),
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
