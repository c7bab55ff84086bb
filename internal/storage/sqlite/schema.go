package sqlite

import "github.com/gareflow/gareflow/internal/storage/migrations"

// schemaMigrations builds the tender store. Versions are append-only.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "tenders and conversation log",
		Up: `
CREATE TABLE IF NOT EXISTS tenders (
    tenant_id TEXT NOT NULL,
    tender_id TEXT NOT NULL,
    state TEXT NOT NULL,
    schema_version TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (tenant_id, tender_id)
);

CREATE INDEX IF NOT EXISTS idx_tenders_updated ON tenders(tenant_id, updated_at);

CREATE TABLE IF NOT EXISTS conversation_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL,
    tender_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
    text TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_tender ON conversation_messages(tenant_id, tender_id, id);
`,
		Down: `
DROP TABLE IF EXISTS conversation_messages;
DROP TABLE IF EXISTS tenders;
`,
	},
	{
		Version:     2,
		Description: "documents and company profiles",
		Up: `
CREATE TABLE IF NOT EXISTS documents (
    tenant_id TEXT NOT NULL,
    tender_id TEXT NOT NULL,
    stored_as TEXT NOT NULL,
    position INTEGER NOT NULL,
    document TEXT NOT NULL,
    PRIMARY KEY (tenant_id, tender_id, stored_as)
);

CREATE TABLE IF NOT EXISTS company_profiles (
    tenant_id TEXT PRIMARY KEY,
    profile TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`,
		Down: `
DROP TABLE IF EXISTS company_profiles;
DROP TABLE IF EXISTS documents;
`,
	},
}
