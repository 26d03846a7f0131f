package chromedp_browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

type element struct {
	s    *Session
	node *cdp.Node
}

// callOn invokes fn with `this` bound to the element and decodes the result into out.
func (e *element) callOn(ctx context.Context, op, fn string, out any) error {
	return e.s.run(ctx, op, e.s.opts.OperationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.callOn(ctx, "text", `function() { return (this.innerText || this.textContent || '').trim(); }`, &text)
	return text, err
}

func (e *element) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.node.Attribute(name)
	return v, ok, nil
}

func (e *element) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := e.s.run(ctx, "outer_html", e.s.opts.OperationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		html, err = dom.GetOuterHTML().WithNodeID(e.node.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.s.run(ctx, "scroll_into_view", e.s.opts.OperationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx)
	}))
}

func (e *element) Click(ctx context.Context) error {
	return e.s.run(ctx, "click", e.s.opts.OperationTimeout,
		chromedp.Click([]cdp.NodeID{e.node.NodeID}, chromedp.ByNodeID))
}

func (e *element) ScriptClick(ctx context.Context) error {
	return e.callOn(ctx, "script_click", `function() {
		this.scrollIntoView({block: 'center', inline: 'center'});
		this.click();
		return true;
	}`, nil)
}

// PointerClick moves the mouse onto the element's centre and presses and
// releases the left button there.
func (e *element) PointerClick(ctx context.Context) error {
	return e.s.run(ctx, "pointer_click", e.s.opts.OperationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		if box == nil || len(box.Content) < 8 {
			return fmt.Errorf("element has no box model")
		}
		q := box.Content
		x := (q[0] + q[2] + q[4] + q[6]) / 4
		y := (q[1] + q[3] + q[5] + q[7]) / 4

		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
}
