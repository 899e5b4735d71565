// internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/vexaline/browsebench/api/schemas"
	"github.com/vexaline/browsebench/internal/config"
)

// cdpPage wraps one attached page target.
type cdpPage struct {
	targetID string
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.BrowserConfig
	logger   *zap.Logger

	domainsOnce sync.Once
	domainsErr  error

	mu     sync.Mutex
	closed bool
}

var _ Page = (*cdpPage)(nil)
var _ schemas.PageHandle = (*cdpPage)(nil)

func newCDPPage(ctx context.Context, cancel context.CancelFunc, targetID string, cfg config.BrowserConfig, logger *zap.Logger) *cdpPage {
	return &cdpPage{
		targetID: targetID,
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger.Named("page").With(zap.String("target_id", targetID)),
	}
}

func (p *cdpPage) TargetID() string { return p.targetID }

func (p *cdpPage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed || p.ctx.Err() != nil
}

func (p *cdpPage) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// run executes chromedp actions against this page, honoring both the page
// lifecycle and the caller's deadline.
func (p *cdpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.Closed() {
		return ErrPageClosed
	}
	runCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Tasks(actions))
}

// ensureDomains enables the protocol domains the page wrapper relies on.
func (p *cdpPage) ensureDomains(ctx context.Context) error {
	p.domainsOnce.Do(func() {
		p.domainsErr = p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
			if err := dom.Enable().Do(c); err != nil {
				return fmt.Errorf("failed to enable DOM domain: %w", err)
			}
			if err := accessibility.Enable().Do(c); err != nil {
				return fmt.Errorf("failed to enable accessibility domain: %w", err)
			}
			return nil
		}))
	})
	return p.domainsErr
}

// -- Navigation --

func (p *cdpPage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()
	if err := p.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %q failed: %w", url, err)
	}
	return nil
}

func (p *cdpPage) GoBack(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateBack())
}

func (p *cdpPage) GoForward(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateForward())
}

func (p *cdpPage) BringToFront(ctx context.Context) error {
	return p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return page.BringToFront().Do(c)
	}))
}

// -- Frames --

func (p *cdpPage) frameTree(ctx context.Context) (*page.FrameTree, error) {
	var tree *page.FrameTree
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame tree: %w", err)
	}
	return tree, nil
}

func (p *cdpPage) MainFrame(ctx context.Context) (Frame, error) {
	tree, err := p.frameTree(ctx)
	if err != nil {
		return nil, err
	}
	return &cdpFrame{page: p, id: tree.Frame.ID, url: tree.Frame.URL}, nil
}

func (p *cdpPage) Frames(ctx context.Context) ([]Frame, error) {
	tree, err := p.frameTree(ctx)
	if err != nil {
		return nil, err
	}
	var out []Frame
	var walk func(t *page.FrameTree, parent cdp.FrameID)
	walk = func(t *page.FrameTree, parent cdp.FrameID) {
		out = append(out, &cdpFrame{page: p, id: t.Frame.ID, parentID: parent, url: t.Frame.URL})
		for _, child := range t.ChildFrames {
			walk(child, t.Frame.ID)
		}
	}
	walk(tree, "")
	return out, nil
}

// Evaluate runs an expression in the main frame.
func (p *cdpPage) Evaluate(ctx context.Context, expression string, out any) error {
	mf, err := p.MainFrame(ctx)
	if err != nil {
		return err
	}
	return mf.Evaluate(ctx, expression, out)
}

// evaluateInFrame runs an expression inside the given frame. An isolated
// world keeps the harness's JavaScript invisible to page scripts while
// sharing the frame's DOM.
func (p *cdpPage) evaluateInFrame(ctx context.Context, frameID cdp.FrameID, expression string, out any) error {
	return p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		ecID, err := page.CreateIsolatedWorld(frameID).
			WithWorldName("browsebench").
			WithGrantUniveralAccess(true).
			Do(c)
		if err != nil {
			return fmt.Errorf("failed to create isolated world for frame %s: %w", frameID, err)
		}

		res, exc, err := runtime.Evaluate(expression).
			WithContextID(ecID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || res.Value == nil {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

// callOnFrameOwner invokes a function declaration with `this` bound to the
// frame's hosting element in the parent document.
func (p *cdpPage) callOnFrameOwner(ctx context.Context, frameID cdp.FrameID, declaration string, out any) error {
	if err := p.ensureDomains(ctx); err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		backendID, _, err := dom.GetFrameOwner(frameID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to resolve owner of frame %s: %w", frameID, err)
		}
		obj, err := dom.ResolveNode().WithBackendNodeID(backendID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to resolve owner node: %w", err)
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(c)

		res, exc, err := runtime.CallFunctionOn(declaration).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || res.Value == nil {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

// -- Captures --

func (p *cdpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

func (p *cdpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("HTML capture failed: %w", err)
	}
	return html, nil
}

// AXNodes captures the accessibility node list of one frame and stamps
// frame-hosting nodes with the id of the frame they host, which is what the
// cross-frame merge keys on.
func (p *cdpPage) AXNodes(ctx context.Context, frameID string) ([]schemas.AXNode, error) {
	if err := p.ensureDomains(ctx); err != nil {
		return nil, err
	}

	var out []schemas.AXNode
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		nodes, err := accessibility.GetFullAXTree().
			WithFrameID(cdp.FrameID(frameID)).
			Do(c)
		if err != nil {
			return fmt.Errorf("accessibility capture for frame %s failed: %w", frameID, err)
		}

		// Map hosting elements (by backend node id) to the frames they host.
		tree, err := page.GetFrameTree().Do(c)
		if err != nil {
			return err
		}
		hosted := make(map[cdp.BackendNodeID]cdp.FrameID)
		var walk func(t *page.FrameTree)
		walk = func(t *page.FrameTree) {
			for _, child := range t.ChildFrames {
				if backendID, _, err := dom.GetFrameOwner(child.Frame.ID).Do(c); err == nil {
					hosted[backendID] = child.Frame.ID
				}
				walk(child)
			}
		}
		walk(tree)

		out = make([]schemas.AXNode, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, convertAXNode(n, hosted))
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func convertAXNode(n *accessibility.Node, hosted map[cdp.BackendNodeID]cdp.FrameID) schemas.AXNode {
	out := schemas.AXNode{
		ID:               string(n.NodeID),
		Ignored:          n.Ignored,
		Role:             axValueString(n.Role),
		Name:             axValueString(n.Name),
		Description:      axValueString(n.Description),
		BackendDOMNodeID: int64(n.BackendDOMNodeID),
	}
	for _, prop := range n.Properties {
		name := string(prop.Name)
		value := axValueString(prop.Value)
		if name == "roledescription" {
			out.RoleDescription = value
		}
		out.Properties = append(out.Properties, schemas.AXProperty{Name: name, Value: value})
	}
	for _, cid := range n.ChildIDs {
		out.ChildIDs = append(out.ChildIDs, string(cid))
	}
	if n.BackendDOMNodeID != 0 {
		if fid, ok := hosted[n.BackendDOMNodeID]; ok {
			out.HostedFrameID = string(fid)
		}
	}
	return out
}

// axValueString extracts the string form of an accessibility value.
func axValueString(v *accessibility.Value) string {
	if v == nil || v.Value == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(v.Value), &s); err == nil {
		return s
	}
	return string(v.Value)
}

// -- Element operations --

// bidOpExpression wraps an operation body in a finder that locates the bid
// across the frame's DOM including open shadow roots. The wrapped expression
// yields "notfound", "ok", or an error description.
func bidOpExpression(bid, body string) string {
	return `(() => {
	const bid = ` + strconv.Quote(bid) + `;
	const find = (root) => {
		let el = null;
		try { el = root.querySelector('[bid=' + JSON.stringify(bid) + ']'); } catch (e) {}
		if (el) return el;
		for (const host of root.querySelectorAll('*')) {
			if (host.shadowRoot) {
				const found = find(host.shadowRoot);
				if (found) return found;
			}
		}
		return null;
	};
	const el = find(document);
	if (!el) return 'notfound';
	try {
		` + body + `
	} catch (e) {
		return 'error: ' + (e && e.message ? e.message : String(e));
	}
	return 'ok';
})()`
}

// withBid runs an operation body against the element carrying bid, scanning
// every attached frame until one claims it.
func (p *cdpPage) withBid(ctx context.Context, bid, body string) error {
	frames, err := p.Frames(ctx)
	if err != nil {
		return err
	}

	expr := bidOpExpression(bid, body)
	var lastErr error
	for _, f := range frames {
		var outcome string
		if err := f.Evaluate(ctx, expr, &outcome); err != nil {
			// A frame may detach mid-scan; keep looking elsewhere.
			lastErr = err
			continue
		}
		switch {
		case outcome == "ok":
			return nil
		case outcome == "notfound":
			continue
		default:
			return fmt.Errorf("operation on element %q failed: %s", bid, outcome)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %q (last frame error: %v)", ErrElementNotFound, bid, lastErr)
	}
	return fmt.Errorf("%w: %q", ErrElementNotFound, bid)
}

const mouseEventOpts = `{bubbles: true, cancelable: true, composed: true, view: window}`

func (p *cdpPage) Click(ctx context.Context, bid string, clickCount int) error {
	body := `
		el.scrollIntoView({block: 'center', inline: 'center'});
		const opts = ` + mouseEventOpts + `;
		el.dispatchEvent(new MouseEvent('mousedown', opts));
		el.dispatchEvent(new MouseEvent('mouseup', opts));
		el.click();`
	if clickCount >= 2 {
		body += `
		el.dispatchEvent(new MouseEvent('dblclick', opts));`
	}
	return p.withBid(ctx, bid, body)
}

func (p *cdpPage) Fill(ctx context.Context, bid, text string) error {
	body := `
		el.focus();
		const text = ` + strconv.Quote(text) + `;
		if (el.isContentEditable) {
			el.textContent = text;
		} else {
			const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			const desc = Object.getOwnPropertyDescriptor(proto, 'value');
			if (desc && desc.set) { desc.set.call(el, text); } else { el.value = text; }
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));`
	return p.withBid(ctx, bid, body)
}

func (p *cdpPage) Press(ctx context.Context, bid, key string) error {
	if err := p.withBid(ctx, bid, `el.focus();`); err != nil {
		return err
	}
	return p.run(ctx, chromedp.KeyEvent(mapKey(key)))
}

func (p *cdpPage) Hover(ctx context.Context, bid string) error {
	body := `
		el.scrollIntoView({block: 'center', inline: 'center'});
		const opts = ` + mouseEventOpts + `;
		el.dispatchEvent(new MouseEvent('mouseover', opts));
		el.dispatchEvent(new MouseEvent('mouseenter', opts));
		el.dispatchEvent(new MouseEvent('mousemove', opts));`
	return p.withBid(ctx, bid, body)
}

func (p *cdpPage) SelectOption(ctx context.Context, bid, value string) error {
	body := `
		const value = ` + strconv.Quote(value) + `;
		if (!el.options) { return 'element is not a select'; }
		let matched = false;
		for (const opt of el.options) {
			if (opt.value === value || opt.label === value || opt.text === value) {
				opt.selected = true;
				matched = true;
				break;
			}
		}
		if (!matched) { return 'no option matched ' + JSON.stringify(value); }
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));`
	return p.withBid(ctx, bid, body)
}

func (p *cdpPage) Scroll(ctx context.Context, bid, direction string) error {
	if bid == "" {
		expr := `(() => {
			const d = ` + strconv.Quote(direction) + `;
			const dx = d === 'left' ? -window.innerWidth * 0.75 : d === 'right' ? window.innerWidth * 0.75 : 0;
			const dy = d === 'up' ? -window.innerHeight * 0.75 : d === 'down' ? window.innerHeight * 0.75 : 0;
			window.scrollBy({left: dx, top: dy, behavior: 'instant'});
			return 'ok';
		})()`
		var outcome string
		return p.Evaluate(ctx, expr, &outcome)
	}

	body := `
		const d = ` + strconv.Quote(direction) + `;
		const dx = d === 'left' ? -el.clientWidth * 0.75 : d === 'right' ? el.clientWidth * 0.75 : 0;
		const dy = d === 'up' ? -el.clientHeight * 0.75 : d === 'down' ? el.clientHeight * 0.75 : 0;
		el.scrollBy({left: dx, top: dy, behavior: 'instant'});`
	return p.withBid(ctx, bid, body)
}

// mapKey translates friendly key names to chromedp key runes.
var keyNames = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"Escape":     kb.Escape,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
}

func mapKey(key string) string {
	if mapped, ok := keyNames[key]; ok {
		return mapped
	}
	return key
}

// -- Lifecycle --

// WaitForSettle polls document readiness up to the given bound. Settling is
// best effort: a timeout means "proceed anyway", never an episode abort.
func (p *cdpPage) WaitForSettle(ctx context.Context, timeout time.Duration) error {
	if p.Closed() {
		return nil
	}
	var ready bool
	err := p.run(ctx, chromedp.Poll(`document.readyState === 'complete'`, &ready,
		chromedp.WithPollingTimeout(timeout),
		chromedp.WithPollingInterval(100*time.Millisecond)))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			p.logger.Debug("Settle wait timed out; proceeding.", zap.Duration("timeout", timeout))
			return nil
		}
		p.logger.Debug("Settle wait failed; proceeding.", zap.Error(err))
	}
	return nil
}

func (p *cdpPage) Close(ctx context.Context) error {
	if p.Closed() {
		return nil
	}
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return page.Close().Do(c)
	}))
	p.markClosed()
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close page %s: %w", p.targetID, err)
	}
	return nil
}
