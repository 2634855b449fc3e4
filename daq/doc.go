// Package daq implements the DAQ (Data AcQuisition) engine: the event
// table, the DAQ-list/ODT/ODT-entry allocation tables, and the
// event-trigger hot path that walks them to produce timestamped
// samples on the transport queue.
//
// Engine uses code.hybscloud.com/atomix (via platform) only for the
// per-list state word and the per-event base addresses, which the hot
// Trigger path reads without taking the table mutex, mirroring the "mutate cold, read hot lock-free"
// split queue and calseg already establish.
//
// Table mutation (Alloc*/Free/SetDaqPtr/WriteDaq/SetDaqListMode) is
// rejected with ErrSequence unless every list is STOPPED: applying a
// reconfiguration mid-measurement silently would leave the client
// unsure which layout a running list samples, so mutation is rejected
// outright.
package daq
