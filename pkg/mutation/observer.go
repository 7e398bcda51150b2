package mutation

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// BridgeFunction is the well-known global the observer script calls with a
// JSON-encoded array of change records.
const BridgeFunction = "__pilotReportMutations"

// ObserverScript returns JavaScript that attaches a MutationObserver to the
// document and reports visible node additions and text modifications through
// the bridge function. Elements inside the element with id overlayID are
// excluded, so the tool's own highlight overlays do not observe themselves.
func ObserverScript(overlayID string) string {
	return fmt.Sprintf(`
(() => {
    if (window.__pilotObserverAttached) {
        return;
    }

    function xpathFor(element) {
        if (!element) return '';
        if (element === document.body) return '/html/body';

        let parentPath = '';
        if (element.parentNode && element.parentNode !== document) {
            parentPath = xpathFor(element.parentNode);
        }

        const tagName = element.tagName.toLowerCase();
        let count = 1;
        let sibling = element.previousElementSibling;
        while (sibling) {
            if (sibling.tagName.toLowerCase() === tagName) {
                count++;
            }
            sibling = sibling.previousElementSibling;
        }
        return parentPath + '/' + tagName + '[' + count + ']';
    }

    const skippedTags = ['SCRIPT', 'NOSCRIPT', 'STYLE'];

    function isVisible(element) {
        const style = window.getComputedStyle(element);
        return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
    }

    function isObservable(element) {
        return element && element.tagName &&
            !skippedTags.includes(element.tagName) &&
            !element.closest('#%s');
    }

    const observer = new MutationObserver((mutations) => {
        const changes = [];

        for (const mutation of mutations) {
            if (mutation.type === 'childList') {
                for (const node of mutation.addedNodes) {
                    if (node.nodeType !== Node.ELEMENT_NODE || !isObservable(node)) {
                        continue;
                    }
                    const content = node.innerText && node.innerText.trim();
                    if (!content || !isVisible(node)) {
                        continue;
                    }
                    changes.push({
                        type: 'added',
                        tag: node.tagName,
                        content: content,
                        xpath: xpathFor(node),
                        html: node.outerHTML
                    });
                }
            } else if (mutation.type === 'characterData') {
                const parent = mutation.target.parentElement;
                if (!isObservable(parent)) {
                    continue;
                }
                const content = mutation.target.data && mutation.target.data.trim();
                if (!content || !isVisible(parent)) {
                    continue;
                }
                changes.push({
                    type: 'modified',
                    tag: parent.tagName,
                    content: content,
                    xpath: xpathFor(parent),
                    html: parent.outerHTML
                });
            }
        }

        const unique = changes.filter((change, index, all) =>
            index === all.findIndex((c) => c.tag === change.tag && c.content === change.content));

        if (unique.length > 0 && typeof window.%s === 'function') {
            window.%s(JSON.stringify(unique));
        }
    });

    observer.observe(document.documentElement || document.body, {
        subtree: true,
        childList: true,
        characterData: true
    });
    window.__pilotObserverAttached = true;
})();
`, overlayID, BridgeFunction, BridgeFunction)
}

// Attach wires a page to the bus: it exposes the bridge function, installs
// the observer script for future navigations, and evaluates it on the
// current document so observation starts immediately.
func Attach(page playwright.Page, bus *Bus, overlayID string) error {
	err := page.ExposeFunction(BridgeFunction, func(args ...interface{}) interface{} {
		if len(args) == 0 {
			return nil
		}
		payload, ok := args[0].(string)
		if !ok {
			return nil
		}
		bus.Receive(payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose mutation bridge: %w", err)
	}

	script := ObserverScript(overlayID)
	if err := page.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
		return fmt.Errorf("failed to install observer init script: %w", err)
	}
	if _, err := page.Evaluate(script); err != nil {
		return fmt.Errorf("failed to attach observer to current document: %w", err)
	}
	return nil
}
