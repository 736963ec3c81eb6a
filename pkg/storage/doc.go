/*
Package storage persists unified events as partitioned, compressed parquet
files laid out in hot/warm/cold tiers.

Layout:

	<root>/
	  hot/   date=YYYY-MM-DD/ hour=HH/ source=<s>/ events.parquet
	  warm/  date=YYYY-MM-DD/ hour=HH/ source=<s>/ events.parquet
	  cold/  date=YYYY-MM-DD/ hour=HH/ source=<s>/ events.parquet

The (date, hour, source) trio identifies a partition; date and hour derive
from the event timestamp. Compression is tier-dependent: fast codecs on hot
and warm, a higher-ratio codec on cold. Flushing into an existing partition
merges rather than overwrites, and every publish is atomic at the file
level.

Reads derive candidate tiers from the retention policy relative to the
query window, union all files per partition, and filter rows to the exact
timestamp window. Lifecycle migrates objects between tiers by age using
copy-then-delete so an interrupted move leaves the source intact.

Two backends implement the same ObjectStore contract: a local filesystem
tree and an S3-compatible bucket.
*/
package storage
