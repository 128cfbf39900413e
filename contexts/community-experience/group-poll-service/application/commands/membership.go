package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "pollbot/contexts/community-experience/group-poll-service/application"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/ports"
)

const (
	MembershipModeObserved  = "observed"
	MembershipModeDirectory = "directory"

	defaultDirectoryMaxPages = 100
)

// ObservedMembership treats everyone who spoke in the conversation, or sent
// /join, as known. The set never shrinks.
type ObservedMembership struct {
	Registry ports.MemberRegistry
}

func (m ObservedMembership) Observe(ctx context.Context, conversationID string, participantID string) error {
	return m.Registry.AddMember(ctx, strings.TrimSpace(conversationID), strings.TrimSpace(participantID))
}

func (m ObservedMembership) Register(ctx context.Context, conversationID string, participantID string) error {
	return m.Registry.AddMember(ctx, strings.TrimSpace(conversationID), strings.TrimSpace(participantID))
}

func (m ObservedMembership) KnownMembers(ctx context.Context, conversationID string) ([]string, error) {
	return m.Registry.ListMembers(ctx, strings.TrimSpace(conversationID))
}

func (ObservedMembership) Mode() string {
	return MembershipModeObserved
}

// DirectoryMembership reads the full roster from the external directory on
// every call. Nothing is cached; observation and /join do not change it.
type DirectoryMembership struct {
	Directory ports.MemberDirectory
	MaxPages  int
	Logger    *slog.Logger
}

func (DirectoryMembership) Observe(context.Context, string, string) error {
	return nil
}

func (DirectoryMembership) Register(context.Context, string, string) error {
	return nil
}

func (m DirectoryMembership) KnownMembers(ctx context.Context, conversationID string) ([]string, error) {
	logger := application.ResolveLogger(m.Logger)
	maxPages := m.MaxPages
	if maxPages <= 0 {
		maxPages = defaultDirectoryMaxPages
	}

	members := make([]string, 0)
	cursor := ""
	for page := 0; page < maxPages; page++ {
		result, err := m.Directory.ListMemberPage(ctx, strings.TrimSpace(conversationID), cursor)
		if err != nil {
			logger.Warn("member directory page lookup failed",
				"event", "group_poll_directory_page_failed",
				"module", "community-experience/group-poll-service",
				"layer", "application",
				"conversation_id", conversationID,
				"page", page,
				"error", err.Error(),
			)
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrDirectoryUnavailable, err)
		}
		members = append(members, result.ParticipantIDs...)
		if strings.TrimSpace(result.Next) == "" {
			return members, nil
		}
		cursor = result.Next
	}

	logger.Warn("member directory pagination truncated",
		"event", "group_poll_directory_truncated",
		"module", "community-experience/group-poll-service",
		"layer", "application",
		"conversation_id", conversationID,
		"max_pages", maxPages,
	)
	return members, nil
}

func (DirectoryMembership) Mode() string {
	return MembershipModeDirectory
}

var _ ports.MembershipTracker = ObservedMembership{}
var _ ports.MembershipTracker = DirectoryMembership{}
