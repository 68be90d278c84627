// internal/snapshot/inject.go
package snapshot

// injectScript rewrites recorded element ids into the attribute form the
// accessibility tree can surface. Every element carrying a data-webtasks-id
// gets a bid attribute, and the id is additionally pushed into
// aria-roledescription and aria-description as a fallback for generic nodes
// whose role description would otherwise be dropped.
const injectScript = `
(function(){
function pushBidToAttribute(bid, elem, attr) {
    let original = "";
    if (elem.hasAttribute(attr)) {
        original = elem.getAttribute(attr);
    }
    elem.setAttribute(attr, "browsergym_id_" + bid + " " + original);
}

function replaceAndInject() {
    const elements = document.querySelectorAll('[data-webtasks-id]');
    for (let i = 0; i < elements.length; i++) {
        const elem = elements[i];
        let bid = elem.getAttribute('data-webtasks-id');
        bid = bid.replace(/-/g, 'x');
        bid = "BID" + bid;
        elem.setAttribute('bid', bid);
        elem.removeAttribute('data-webtasks-id');

        pushBidToAttribute(bid, elem, 'aria-roledescription');
        pushBidToAttribute(bid, elem, 'aria-description');
    }
}

replaceAndInject();
})();
`

// InjectScript exposes the rewrite script for testing.
func InjectScript() string {
	return injectScript
}
