package dataset

// Schema holds the tables of the sqlite dataset.
const Schema = `
-- Reconstructed thread messages, one row per position
CREATE TABLE IF NOT EXISTS messages (
    conversation_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    sender TEXT NOT NULL,
    sent TEXT NOT NULL,
    recipients TEXT NOT NULL,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (conversation_id, position)
);

-- Training pairs; position is the index of the completion message
CREATE TABLE IF NOT EXISTS pairs (
    conversation_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    prompt TEXT NOT NULL,
    completion TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (conversation_id, position)
);

CREATE INDEX IF NOT EXISTS idx_pairs_conversation ON pairs(conversation_id);
`
