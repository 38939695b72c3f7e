// Package alerts evaluates record-level alert rules after every render pass
// and delivers webhook notifications to Slack, Teams, or generic HTTP
// targets when a rule fires or resolves.
package alerts
