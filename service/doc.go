// Package service hands out pooled byte buffers under shared and weak
// ownership and keeps the books on every managed resource.
//
// LeaseService is the only write entry point. Registry observes every
// lifecycle transition, feeds metrics and the durable ledger, and can
// produce a leak report at any time.
package service
