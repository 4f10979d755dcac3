package ui

// Layout dimensions shared by the pages.
const (
	headerHeight    = 1
	footerHeight    = 1
	contentPaddingH = 2 // matches Styles.Content
	contentPaddingV = 1
	minContentWidth = 20
)

// bodyHeight returns the rows a page may use between header and footer.
func bodyHeight(termHeight int) int {
	return max(termHeight-headerHeight-footerHeight-2*contentPaddingV, 0)
}

// contentWidth returns the usable width inside the content padding.
func contentWidth(termWidth int) int {
	return max(termWidth-2*contentPaddingH, minContentWidth)
}
