// Package storage maps channels and posts onto the output tree and performs
// the filesystem operations the sync relies on.
//
// Layout:
//
//	<root>/<owner> (<channel>)/<YYYY-MM-DD>-<title>-<post id>/
//	    metadata.json
//	    1-1.jpg 1-2.jpg 2.zip ...
//
// Every name component goes through CleanPath. Content files are written
// with WriteAtomic so that existence alone marks a completed download.
package storage
