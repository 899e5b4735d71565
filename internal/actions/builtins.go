// internal/actions/builtins.go
package actions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vexaline/browsebench/internal/browser"
)

// defaultNoopWait is how long noop() pauses when no duration is given.
const defaultNoopWait = 1000 * time.Millisecond

// registerBuiltins installs the agent-facing command set. Arity bounds are
// checked here at registration, so a malformed entry fails at startup.
func registerBuiltins(r *Registry) {
	r.register("noop", 0, 1, noopHandler)
	r.register("click", 1, 1, clickHandler(1))
	r.register("dblclick", 1, 1, clickHandler(2))
	r.register("fill", 2, 2, fillHandler)
	r.register("press", 2, 2, pressHandler)
	r.register("hover", 1, 1, hoverHandler)
	r.register("select_option", 2, 2, selectOptionHandler)
	r.register("scroll", 1, 2, scrollHandler)
	r.register("goto", 1, 1, gotoHandler)
	r.register("go_back", 0, 0, goBackHandler)
	r.register("go_forward", 0, 0, goForwardHandler)
	r.register("send_msg_to_user", 1, 1, sendMessageHandler)
	r.register("report_infeasible", 0, 1, reportInfeasibleHandler)
}

// stringArg reads args[i] as a string, formatting scalar coercions back to
// text. A null argument is rejected.
func stringArg(action string, args []any, i int) (string, error) {
	switch v := args[i].(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", execErr(ErrCodeInvalidArguments, action, "argument %d must not be null", i+1)
	default:
		return fmt.Sprint(v), nil
	}
}

// durationArg reads args[i] as a millisecond count.
func durationArg(action string, args []any, i int) (time.Duration, error) {
	switch v := args[i].(type) {
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	default:
		return 0, execErr(ErrCodeInvalidArguments, action, "argument %d must be a number of milliseconds, got %T", i+1, args[i])
	}
}

// wrapExec converts a browser-layer failure into a typed execution error.
func wrapExec(action string, err error) error {
	if err == nil {
		return nil
	}
	code := ErrCodeExecutionFailure
	if errors.Is(err, browser.ErrElementNotFound) {
		code = ErrCodeElementNotFound
	}
	return &ExecError{Code: code, Action: action, Msg: "browser operation failed", Cause: err}
}

func noopHandler(ctx context.Context, env Context, args []any) error {
	wait := defaultNoopWait
	if len(args) == 1 {
		d, err := durationArg("noop", args, 0)
		if err != nil {
			return err
		}
		wait = d
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clickHandler(clickCount int) Handler {
	name := "click"
	if clickCount >= 2 {
		name = "dblclick"
	}
	return func(ctx context.Context, env Context, args []any) error {
		bid, err := stringArg(name, args, 0)
		if err != nil {
			return err
		}
		pg, err := env.ActivePage(ctx)
		if err != nil {
			return wrapExec(name, err)
		}
		return wrapExec(name, pg.Click(ctx, bid, clickCount))
	}
}

func fillHandler(ctx context.Context, env Context, args []any) error {
	bid, err := stringArg("fill", args, 0)
	if err != nil {
		return err
	}
	text, err := stringArg("fill", args, 1)
	if err != nil {
		return err
	}
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("fill", err)
	}
	return wrapExec("fill", pg.Fill(ctx, bid, text))
}

func pressHandler(ctx context.Context, env Context, args []any) error {
	bid, err := stringArg("press", args, 0)
	if err != nil {
		return err
	}
	key, err := stringArg("press", args, 1)
	if err != nil {
		return err
	}
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("press", err)
	}
	return wrapExec("press", pg.Press(ctx, bid, key))
}

func hoverHandler(ctx context.Context, env Context, args []any) error {
	bid, err := stringArg("hover", args, 0)
	if err != nil {
		return err
	}
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("hover", err)
	}
	return wrapExec("hover", pg.Hover(ctx, bid))
}

func selectOptionHandler(ctx context.Context, env Context, args []any) error {
	bid, err := stringArg("select_option", args, 0)
	if err != nil {
		return err
	}
	value, err := stringArg("select_option", args, 1)
	if err != nil {
		return err
	}
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("select_option", err)
	}
	return wrapExec("select_option", pg.SelectOption(ctx, bid, value))
}

var scrollDirections = map[string]bool{"up": true, "down": true, "left": true, "right": true}

// scrollHandler accepts scroll(id, direction) for element scrolling and the
// one-argument scroll(direction) form for the window.
func scrollHandler(ctx context.Context, env Context, args []any) error {
	var bid, direction string
	var err error
	if len(args) == 1 {
		direction, err = stringArg("scroll", args, 0)
	} else {
		if bid, err = stringArg("scroll", args, 0); err == nil {
			direction, err = stringArg("scroll", args, 1)
		}
	}
	if err != nil {
		return err
	}
	if !scrollDirections[direction] {
		return execErr(ErrCodeInvalidArguments, "scroll", "direction must be one of up/down/left/right, got %q", direction)
	}
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("scroll", err)
	}
	return wrapExec("scroll", pg.Scroll(ctx, bid, direction))
}

func gotoHandler(ctx context.Context, env Context, args []any) error {
	url, err := stringArg("goto", args, 0)
	if err != nil {
		return err
	}
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("goto", err)
	}
	return wrapExec("goto", pg.Navigate(ctx, url))
}

func goBackHandler(ctx context.Context, env Context, args []any) error {
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("go_back", err)
	}
	return wrapExec("go_back", pg.GoBack(ctx))
}

func goForwardHandler(ctx context.Context, env Context, args []any) error {
	pg, err := env.ActivePage(ctx)
	if err != nil {
		return wrapExec("go_forward", err)
	}
	return wrapExec("go_forward", pg.GoForward(ctx))
}

func sendMessageHandler(ctx context.Context, env Context, args []any) error {
	text, err := stringArg("send_msg_to_user", args, 0)
	if err != nil {
		return err
	}
	env.SendMessage("assistant", text)
	return nil
}

func reportInfeasibleHandler(ctx context.Context, env Context, args []any) error {
	reason := "The task as stated is infeasible."
	if len(args) == 1 {
		r, err := stringArg("report_infeasible", args, 0)
		if err != nil {
			return err
		}
		reason = r
	}
	env.ReportInfeasible(reason)
	return nil
}
