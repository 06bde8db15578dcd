package ingest

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/fetch"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

func (in *Ingestor) ingestOutlook(ctx context.Context, ref *platform.ThreadRef) (*store.Thread, error) {
	mailbox := ref.Mailbox
	conversationID := ref.ConversationID

	workspaceKey := ref.TenantID
	if workspaceKey == "" {
		workspaceKey = mailbox
	}
	ws, err := in.store.EnsureWorkspace(ctx, platform.Outlook, workspaceKey)
	if err != nil {
		return nil, err
	}

	parentResource := ref.TenantID
	if parentResource == "" {
		parentResource = mailbox
	}
	ch, err := in.store.EnsureChannel(ctx, ws, platform.Outlook, mailbox, store.ChannelAttrs{
		ParentResourceID: parentResource,
		Mailbox:          mailbox,
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("conversationId eq '%s'", conversationID))
	params.Set("$orderby", "createdDateTime asc")
	payloads, err := in.graph.List(ctx, fmt.Sprintf("%s/users/%s/messages", fetch.GraphBaseURL, mailbox), params)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation %s: %w", conversationID, err)
	}
	in.log.Debug("fetched outlook conversation",
		zap.String("mailbox", mailbox),
		zap.String("conversation_id", conversationID),
		zap.Int("messages", len(payloads)))

	threadURL := ""
	if len(payloads) > 0 {
		threadURL = getString(payloads[0], "webLink")
	}
	th, err := in.store.EnsureThread(ctx, ws, ch, platform.Outlook, conversationID, store.ThreadAttrs{
		SourceParentID: mailbox,
		SourceURL:      threadURL,
	})
	if err != nil {
		return nil, err
	}

	// Email lacks a reliable reply pointer; absent explicit headers the
	// previous message in arrival order serves as the parent.
	previousID := ""
	for _, payload := range payloads {
		sender := getMap(getMap(payload, "from"), "emailAddress")
		nativeUserID := getString(sender, "address")
		if nativeUserID == "" {
			nativeUserID = getString(sender, "name")
		}
		displayName := getString(sender, "name")
		if displayName == "" {
			displayName = nativeUserID
		}

		user, err := in.store.EnsureUser(ctx, ws, platform.Outlook, nativeUserID, displayName, store.UserAttrs{
			Email: getString(sender, "address"),
		})
		if err != nil {
			return nil, err
		}

		body := getString(getMap(payload, "body"), "content")
		text := htmlToText(body)

		createdRaw := getString(payload, "sentDateTime")
		if createdRaw == "" {
			createdRaw = getString(payload, "receivedDateTime")
		}

		parentID := getString(payload, "replyToId")
		if parentID == "" {
			parentID = getString(payload, "inReplyTo")
		}
		if parentID == "" {
			parentID = previousID
		}

		nativeID := getString(payload, "id")
		m := &store.Message{
			ThreadID:    th.ID,
			Platform:    platform.Outlook,
			SourceMsgID: nativeID,
			ParentMsgID: parentID,
			Text:        text,
			Reactions:   map[string]int{},
			Metadata: map[string]any{
				"webLink":           getString(payload, "webLink"),
				"internetMessageId": getString(payload, "internetMessageId"),
				"conversationIndex": getString(payload, "conversationIndex"),
				"toRecipients":      payload["toRecipients"],
				"ccRecipients":      payload["ccRecipients"],
				"raw_html":          body,
			},
			CreatedAt: parseGraphTime(createdRaw),
		}
		if user != nil {
			m.AuthorUserID = &user.ID
		}
		if err := in.store.UpsertMessage(ctx, m); err != nil {
			return nil, err
		}
		previousID = nativeID
	}
	return th, nil
}
