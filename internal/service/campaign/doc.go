// Package campaign implements the Campaign Store and Orchestrator (§4.4,
// §4.8): the campaign lifecycle state machine (draft -> running -> paused
// -> running -> completed/failed), the scheduling pipeline that turns a
// generated DailyPlan into Delivery Queue jobs, and the atomic
// progress/plan counters shared with the Event Ingestor and worker pool.
//
// The service layer holds all business logic; it depends on the
// Repository interface defined in this package and never imports from
// cmd/. Repository implementations live in repository/postgres.
package campaign
