package generate

import (
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/replica/pkg/models"
)

// DefaultStack describes the project layout the model is asked to produce.
const DefaultStack = "a static site of plain HTML and CSS: index.html at the project root plus stylesheets under css/. No JavaScript build step, no external CDNs."

// maxProblemLines bounds the build/lint lines folded into one prompt.
const maxProblemLines = 30

const systemPrompt = `You are a front-end engineer rebuilding the presentation layer of an existing web page.
You receive the page's detected components, its design tokens and, on later attempts, a ranked list of
differences between your last rebuild and the original. Reproduce the original's structure and styling
as closely as possible: same landmark regions, same repeated patterns, same colors, spacing and type.

Target stack: %s

Output format, strictly: