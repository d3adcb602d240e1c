package db

// SchemaSQL defines the career profile table. Only the top-level fields are
// typed; insight objects are stored as sent.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS career_profile SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS name ON career_profile TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON career_profile TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS insights ON career_profile TYPE array<object> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS insights_updated_at ON career_profile TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS created ON career_profile TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS career_profile_name ON career_profile FIELDS name;
`
