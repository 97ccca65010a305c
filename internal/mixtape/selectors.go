package mixtape

// Catalog page paths.
const (
	pathEntries       = `//div[@id="leftColumnWide"]//div[@class="contentItemInner"]`
	pathBannerClasses = `./a/div/@class`
	pathArtist        = `./div[@class="artist"]/text()`
	pathTitle         = `./div[@class="title"]//text()`
	pathDetailLink    = `./div[@class="title"]//@href`
	pathListens       = `./div[text()="Listens: "]/span/text()`
	pathRatingAlt     = `./div[@class="text"]/img/@alt`
	pathRatingTitle   = `./div[@class="text"]/img/@title`

	pathActivePage = `//div[@class="pagination"]//a[@class="active"]/text()`
	pathNextHref   = `//div[@class="pagination"]/a[@class="next"]/@href`
)

// Detail page paths. Paths starting with "." are relative to the info block.
const (
	pathInfo        = `//div[@class="module1"]`
	pathHost        = `.//li[@class="dj"]/text()`
	pathViews       = `.//li[@class="listens"]/text()`
	pathReleaseDate = `//div[@class="left"]//span/text()`
	pathAddedBy     = `//div[@class="left"]//a/text()`
	pathDescription = `.//div[@class="description"]//text()`
	pathStatIcons   = `.//div[@class="downloads right"]//li/img/@src`
	pathStatCounts  = `.//div[@class="downloads right"]//li/text()`
	pathTrackNumber = `//span[@class="tracknumber"]/text()`
	pathButtons     = `//div[@class="actionButtons"]//text()`
)

// Banner class markers.
const (
	markerOfficial  = "banner official"
	markerSponsor   = "banner sponsor"
	markerExclusive = "banner exclusive"
)

// Action button labels.
const (
	labelStream   = "Stream"
	labelDownload = "Download"
	labelBuy      = "BUY"
)

// Statistics labels derived from the icon file names.
const (
	statListens   = "listens"
	statDownloads = "downloads"
)
