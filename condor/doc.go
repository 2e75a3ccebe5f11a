// Package condor adapts the HTCondor command line tools into the FetchFunc
// consumed by the dataset cache. It shells out to condor_q and
// condor_history with -json output, merges current queue and historical
// jobs into one row set, and annotates each row with its data source. The
// command runner is injectable so tests can feed canned JSON without a
// scheduler installation.
package condor
