// internal/marking/script.go
package marking

import (
	"strconv"
	"strings"
)

// BidGuard guards the piggybacked bid inside ARIA string properties.
// The accessibility protocol has no generic metadata channel, so marked
// values take the form "bbid_<bid>_<original text>".
const (
	BidGuard = "bbid"
	// origAttr preserves a pre-existing aria-roledescription so unmarking
	// can restore the DOM exactly.
	origAttr = "bid-orig-roledescription"
	// frameSeparator joins a child frame's prefix onto its owner's bid.
	// Local ids never contain it, so a bid decomposes unambiguously into
	// its frame path: the 27th frame owner of the top page is "aa", while
	// the first frame owner inside frame "a" is "a-a". Without it the two
	// would collide. It must never be "_", which ParseMarkedValue treats
	// as the end of the bid.
	frameSeparator = "-"
)

// MarkedValue builds the piggyback value carried by aria-roledescription.
func MarkedValue(bid, original string) string {
	return BidGuard + "_" + bid + "_" + original
}

// ParseMarkedValue splits a piggyback value back into (bid, original). The
// second return is false when the value carries no mark.
func ParseMarkedValue(v string) (bid, original string, ok bool) {
	rest, found := strings.CutPrefix(v, BidGuard+"_")
	if !found {
		return "", "", false
	}
	bid, original, found = strings.Cut(rest, "_")
	if !found {
		return "", "", false
	}
	return bid, original, true
}

// markScript tags every element under the document (including open shadow
// roots) with a bid built from the frame prefix and a per-frame counter.
// Ordinary elements get numeric local ids; frame-hosting elements get
// alphabetic ones. Non-empty prefixes always end in frameSeparator, which
// keeps bids of different frames disjoint.
func markScript(prefix string) string {
	return `(() => {
	const prefix = ` + strconv.Quote(prefix) + `;
	let elemCount = 0;
	let frameCount = 0;
	const alpha = (n) => {
		let s = '';
		n += 1;
		while (n > 0) {
			n -= 1;
			s = String.fromCharCode(97 + (n - Math.floor(n / 26) * 26)) + s;
			n = Math.floor(n / 26);
		}
		return s;
	};
	const hostsFrame = (el) => el.tagName === 'IFRAME' || el.tagName === 'FRAME';
	const markRoot = (root) => {
		for (const el of root.querySelectorAll('*')) {
			const local = hostsFrame(el) ? alpha(frameCount++) : String(elemCount++);
			const bid = prefix + local;
			el.setAttribute('bid', bid);
			const orig = el.getAttribute('aria-roledescription');
			if (orig !== null) {
				el.setAttribute('` + origAttr + `', orig);
			}
			el.setAttribute('aria-roledescription', '` + BidGuard + `_' + bid + '_' + (orig || ''));
			if (el.shadowRoot) { markRoot(el.shadowRoot); }
		}
	};
	markRoot(document);
	return elemCount + frameCount;
})()`
}

// unmarkScript strips every marker attribute and restores any original
// aria-roledescription, leaving the DOM exactly as before marking.
const unmarkScript = `(() => {
	const unmarkRoot = (root) => {
		for (const el of root.querySelectorAll('*')) {
			if (el.hasAttribute('bid')) {
				el.removeAttribute('bid');
				const orig = el.getAttribute('` + origAttr + `');
				if (orig !== null) {
					el.setAttribute('aria-roledescription', orig);
					el.removeAttribute('` + origAttr + `');
				} else {
					el.removeAttribute('aria-roledescription');
				}
			}
			if (el.shadowRoot) { unmarkRoot(el.shadowRoot); }
		}
	};
	unmarkRoot(document);
	return true;
})()`
