package export

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// Leaves 4 characters for the suffix in case of duplicates.
const maxSlugLength = 124

// Makes a unique slug for a file name.
// The returned slug is guaranteed not to exist in `existingSlugs`. When this function returns, the slug has been added
// to the map passed as input.
func makeUniqueSlug(str string, existingSlugs map[string]bool) string {
	slg := slug.Make(str)
	if len(slg) > maxSlugLength {
		slg = strings.TrimRight(slg[:maxSlugLength], "-")
	}
	if len(slg) == 0 {
		slg = "visualisation"
	}
	baseSlug := slg

	for i := 1; ; i++ {
		if !existingSlugs[slg] {
			existingSlugs[slg] = true
			return slg
		}

		slg = fmt.Sprintf("%s-%03d", baseSlug, i)
	}
}
