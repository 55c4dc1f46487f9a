package sources

// YouTube sources are split across files by responsibility:
//   search.go             the search fallback chain and result caching
//   malvin.go             Malvin search API (primary search source)
//   youtube_search.go     Data API v3 search and ytInitialData scraping
//   ytsearch.go           raitonoberu/ytsearch library source
//   metadata.go           title/author/thumbnail lookup chain
//   youtube_innertube.go  InnerTube /player metadata
