package postgres

// Schema is the canonical DDL for the coordination tables. Integration tests
// apply it to throwaway containers; deployments run it through their usual
// migration tooling.
//
// blood_requests.status and the partial index on (status, created_at) back the
// two conditional operations that matter: the accept compare-and-swap and the
// reap of expired open requests.
const Schema = `
CREATE TABLE IF NOT EXISTS blood_requests (
	id UUID PRIMARY KEY,
	blood_group TEXT NOT NULL,
	units INT NOT NULL CHECK (units > 0),
	location_name TEXT NOT NULL,
	location_lat DOUBLE PRECISION,
	location_lng DOUBLE PRECISION,
	requester TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'accepted', 'completed')),
	donor TEXT,
	donor_name TEXT,
	donor_phone TEXT,
	confirmation_code TEXT,
	meeting_time TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blood_requests_open_created
	ON blood_requests (created_at) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS donations (
	id UUID PRIMARY KEY,
	request_id UUID NOT NULL UNIQUE REFERENCES blood_requests (id) ON DELETE CASCADE,
	donor TEXT NOT NULL,
	receiver TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
	confirmation_code TEXT,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS donor_profiles (
	email TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS achievements (
	id BIGSERIAL PRIMARY KEY,
	donor_email TEXT NOT NULL REFERENCES donor_profiles (email),
	title TEXT NOT NULL,
	achieved_at TIMESTAMPTZ NOT NULL,
	confirmation_code TEXT NOT NULL,
	location TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_achievements_donor ON achievements (donor_email, id);

CREATE TABLE IF NOT EXISTS prescriptions (
	id UUID PRIMARY KEY,
	patient_email TEXT NOT NULL,
	patient_name TEXT NOT NULL,
	upload_ref TEXT,
	upload_name TEXT,
	medicines TEXT[] NOT NULL DEFAULT '{}',
	kind TEXT NOT NULL CHECK (kind IN ('upload', 'manual')),
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'rejected')),
	all_present BOOLEAN,
	available_medicines TEXT[],
	confirmed_by TEXT,
	confirmed_at TIMESTAMPTZ,
	submitted_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prescriptions_patient ON prescriptions (patient_email, submitted_at DESC);

CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	actor TEXT NOT NULL,
	subject TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
`
