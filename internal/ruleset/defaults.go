package ruleset

// DefaultRules is written to the default rule file on first load
const DefaultRules = `! vibeview adblock rules
! Common ad networks and trackers

! Google Ads
||pagead2.googlesyndication.com^
||google-analytics.com^
||analytics.google.com^
||googleads.g.doubleclick.net^

! Facebook
||facebook.com/tr^
||pixel.facebook.com^

! Microsoft/Bing Ads
||bat.bing.com^
||c.microsoft.com^

! Amazon
||amazon-adsystem.com^

! Adtech
||criteo.com^
||criteo.net^
||doubleclick.net^
||serving-sys.com^
||adnxs.com^

! Tracking
||mixpanel.com^
||segment.com^
||quantserve.com^
||scorecardresearch.com^

! Whitelist (do not block)
@@||google.com^
@@||google.de^
@@||github.com^
`
