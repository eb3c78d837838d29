// Package alerts evaluates ride alert rules against each engine Output and
// delivers webhook notifications to Slack, Teams or generic HTTP targets when
// a rule fires or resolves. Rules are keyed per session, so changing target
// starts every rule afresh.
package alerts
