package migrations

import (
	"fmt"

	"github.com/sorewa/gatehouse/internal/domain/session"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/domain/user"
	"gorm.io/gorm"
)

// NotifyChannel is the Postgres channel the change triggers publish to
// and the feed listener subscribes to.
const NotifyChannel = "gatehouse_changes"

// ddlStatements covers what AutoMigrate cannot express: the partial
// unique index guarding the one-active-session-per-user invariant and
// the change-feed triggers on users and sessions.
var ddlStatements = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active_per_user
		ON sessions (user_id) WHERE is_active`,

	`CREATE OR REPLACE FUNCTION gatehouse_notify_change() RETURNS trigger AS $$
	DECLARE
		rec record;
		payload text;
	BEGIN
		IF (TG_OP = 'DELETE') THEN
			rec := OLD;
		ELSE
			rec := NEW;
		END IF;
		payload := json_build_object(
			'table', TG_TABLE_NAME,
			'op', lower(TG_OP),
			'row', row_to_json(rec)
		)::text;
		PERFORM pg_notify('` + NotifyChannel + `', payload);
		RETURN rec;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS users_notify_change ON users`,
	`CREATE TRIGGER users_notify_change
		AFTER INSERT OR UPDATE OR DELETE ON users
		FOR EACH ROW EXECUTE FUNCTION gatehouse_notify_change()`,

	`DROP TRIGGER IF EXISTS sessions_notify_change ON sessions`,
	`CREATE TRIGGER sessions_notify_change
		AFTER INSERT OR UPDATE OR DELETE ON sessions
		FOR EACH ROW EXECUTE FUNCTION gatehouse_notify_change()`,
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&user.User{}, &token.Token{}, &session.Session{}); err != nil {
		return fmt.Errorf("failed to make migrations: %w", err)
	}

	for _, stmt := range ddlStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply schema DDL: %w", err)
		}
	}

	return nil
}
