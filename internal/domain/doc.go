// Package domain holds the deal-matching model shared by every module: deals and
// their lifecycle, investor filter sets, evaluation results, opportunity views and
// resubmission events.
package domain
