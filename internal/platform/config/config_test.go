package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "pollbot", cfg.ServiceName)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, MembershipObserved, cfg.MembershipMode)
	require.Equal(t, MemberStoreMemory, cfg.MemberStore)
	require.Equal(t, 20, cfg.MentionBatchSize)
	require.Equal(t, 13, cfg.QuickReplyLimit)
	require.Equal(t, 5*time.Second, cfg.ExternalCallTimeout)
	require.Equal(t, ArchiveNone, cfg.ArchiveDriver)
	require.Empty(t, cfg.SweepSecret)
	require.False(t, cfg.Tracing.Enabled)
}

func TestLoadReadsBareLineVariables(t *testing.T) {
	t.Setenv("LINE_CHANNEL_SECRET", "secret-from-env")
	t.Setenv("LINE_CHANNEL_TOKEN", "token-from-env")
	t.Setenv("PORT", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "secret-from-env", cfg.LineChannelSecret)
	require.Equal(t, "token-from-env", cfg.LineChannelToken)
	require.Equal(t, "5000", cfg.HTTPPort)
}

func TestLoadPrefixedVariablesOverrideDefaults(t *testing.T) {
	t.Setenv("POLLBOT_POLL_MENTION_BATCH_SIZE", "5")
	t.Setenv("POLLBOT_SWEEP_SECRET", "s3cret")
	t.Setenv("POLLBOT_MEMBERSHIP_MODE", "directory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MentionBatchSize)
	require.Equal(t, "s3cret", cfg.SweepSecret)
	require.Equal(t, MembershipDirectory, cfg.MembershipMode)
	require.Equal(t, DirectorySourceLine, cfg.DirectorySource)
}

func TestLoadFileLayersUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pollbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
poll:
  mention_batch_size: 10
  quick_reply_limit: 4
archive:
  driver: sqlite
  sqlite_path: /tmp/results.db
`), 0o600))
	t.Setenv("POLLBOT_POLL_QUICK_REPLY_LIMIT", "6")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.MentionBatchSize)
	require.Equal(t, 6, cfg.QuickReplyLimit)
	require.Equal(t, ArchiveSQLite, cfg.ArchiveDriver)
	require.Equal(t, "/tmp/results.db", cfg.SQLitePath)
}

func TestLoadRejectsUnknownMembershipMode(t *testing.T) {
	t.Setenv("POLLBOT_MEMBERSHIP_MODE", "guess")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "membership.mode")
}

func TestValidateRequiresDSNForPostgresArchive(t *testing.T) {
	t.Setenv("POLLBOT_ARCHIVE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres.dsn")
}
