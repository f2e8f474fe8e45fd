package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automations (
				automation_id BIGINT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('active', 'inactive')),
				trigger_type VARCHAR(100) NOT NULL,
				trigger_settings JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_automations_trigger ON automations(trigger_type, status);

			CREATE TABLE automation_steps (
				step_id BIGINT PRIMARY KEY,
				automation_id BIGINT NOT NULL REFERENCES automations(automation_id) ON DELETE CASCADE,
				parent_id BIGINT NOT NULL DEFAULT 0,
				branch VARCHAR(10) NOT NULL DEFAULT 'none',
				step_type VARCHAR(20) NOT NULL,
				step_settings JSONB NOT NULL DEFAULT '{}',
				step_order INT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_automation_steps_siblings ON automation_steps(automation_id, parent_id, branch, step_order);

			CREATE TABLE automation_queue (
				queue_id BIGSERIAL PRIMARY KEY,
				automation_id BIGINT NOT NULL,
				contact_id BIGINT NOT NULL,
				current_step_id BIGINT NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('waiting', 'processing', 'completed')),
				process_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_automation_queue_due ON automation_queue(status, process_at);

			CREATE TABLE mailer_queue (
				id BIGSERIAL PRIMARY KEY,
				campaign_id BIGINT NOT NULL,
				contact_id BIGINT NOT NULL,
				status VARCHAR(20) NOT NULL,
				added_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_mailer_queue_contact_campaign ON mailer_queue(contact_id, campaign_id);

			CREATE TABLE email_opens (
				id BIGSERIAL PRIMARY KEY,
				queue_id BIGINT NOT NULL REFERENCES mailer_queue(id) ON DELETE CASCADE,
				opened_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_email_opens_queue_id ON email_opens(queue_id);

			CREATE TABLE automation_logs (
				id BIGSERIAL PRIMARY KEY,
				severity VARCHAR(10) NOT NULL,
				category VARCHAR(100) NOT NULL,
				message TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
		2: `
			-- Retry visibility for journeys that keep failing
			ALTER TABLE automation_queue
				ADD COLUMN attempts INT NOT NULL DEFAULT 0,
				ADD COLUMN updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW();

			CREATE INDEX idx_automation_queue_automation ON automation_queue(automation_id, status);
		`,
	}
}
