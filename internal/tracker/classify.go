package tracker

import (
	_ "embed"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"

	"analyzr/internal/events"
)

//go:embed rules.yml
var rulesData []byte

// Rule is one (predicate, label) classification pair. Rules are
// evaluated in file order and the first match wins.
type Rule struct {
	Contains string `yaml:"contains"`
	Label    string `yaml:"label"`
}

type ruleFile struct {
	OS      []Rule `yaml:"os"`
	Browser []Rule `yaml:"browser"`
}

// Device types reported by classification.
const (
	DeviceTablet  = "tablet"
	DeviceMobile  = "mobile"
	DeviceLaptop  = "laptop"
	DeviceDesktop = "desktop"
)

// The tablet pattern uses a lookahead (android without "mobi" is a
// tablet), which the stdlib regexp engine does not support.
var (
	tabletPattern = pcre.MustCompile(`(?i)(tablet|ipad|playbook|silk)|(android(?!.*mobi))`)
	mobilePattern = pcre.MustCompile(`Mobile|Android|iP(hone|od)|IEMobile|BlackBerry|Kindle|Silk-Accelerated|(hpw|web)OS|Opera M(obi|ini)`)
)

// Small desktop-class screens are treated as laptops even without a
// mobile user-agent signature.
const (
	laptopMaxWidth  = 1366
	laptopMaxHeight = 768
)

// Classifier derives OS, browser, and device type from a user-agent
// string, using the embedded ordered rule table.
type Classifier struct {
	osRules      []Rule
	browserRules []Rule
}

var (
	classifier     *Classifier
	classifierOnce sync.Once
)

// GetClassifier returns the shared classifier, loading the embedded rule
// table on first use.
func GetClassifier() *Classifier {
	classifierOnce.Do(func() {
		var rules ruleFile
		if err := yaml.Unmarshal(rulesData, &rules); err != nil {
			// The rule file is embedded; a parse failure is a build defect.
			panic("tracker: invalid embedded rules.yml: " + err.Error())
		}
		classifier = &Classifier{
			osRules:      rules.OS,
			browserRules: rules.Browser,
		}
	})
	return classifier
}

// Classify returns the operating system and browser labels for a
// user-agent string, defaulting to "Unknown" when no rule matches.
func (c *Classifier) Classify(userAgent string) (os, browser string) {
	return matchRules(c.osRules, userAgent), matchRules(c.browserRules, userAgent)
}

// DeviceType classifies the client device. User-agent signatures win;
// ambiguous desktop-class agents fall back to the screen-size threshold.
func (c *Classifier) DeviceType(userAgent string, screenWidth, screenHeight int) string {
	if tabletPattern.MatchString(userAgent) {
		return DeviceTablet
	}
	if mobilePattern.MatchString(userAgent) {
		return DeviceMobile
	}
	if screenWidth > 0 && screenHeight > 0 &&
		screenWidth <= laptopMaxWidth && screenHeight <= laptopMaxHeight {
		return DeviceLaptop
	}
	return DeviceDesktop
}

func matchRules(rules []Rule, userAgent string) string {
	for _, rule := range rules {
		if strings.Contains(userAgent, rule.Contains) {
			return rule.Label
		}
	}
	return events.UnknownValue
}
