package compare

import (
	"encoding/json"
	"fmt"
)

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

type formState struct {
	AmountFound bool     `json:"amountFound"`
	MethodFound bool     `json:"methodFound"`
	Changed     []string `json:"changed"`
}

// reconcileScript sets the amount and payment method inputs when they differ from the
// desired values, dispatching input and change events so the page's own handlers run.
func reconcileScript(selectors Selectors, pair Pair) string {
	return fmt.Sprintf(`(() => {
	const q = (s) => s ? document.querySelector(s) : null;
	const amount = q(%s);
	const method = q(%s);
	const desiredAmount = %s;
	const desiredMethod = %s;
	const changed = [];
	const set = (el, value) => {
		const proto = Object.getPrototypeOf(el);
		const setter = Object.getOwnPropertyDescriptor(proto, "value");
		if (setter && setter.set) {
			setter.set.call(el, value);
		} else {
			el.value = value;
		}
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
	};
	if (amount && String(amount.value).replace(/[^0-9.]/g, "") !== desiredAmount) {
		set(amount, desiredAmount);
		changed.push("amount");
	}
	if (method && desiredMethod !== "" && method.value !== desiredMethod) {
		set(method, desiredMethod);
		changed.push("paymentMethod");
	}
	return { amountFound: !!amount, methodFound: !!method, changed };
})()`,
		jsString(selectors.AmountInput),
		jsString(selectors.PaymentMethodInput),
		jsString(fmt.Sprint(pair.Amount)),
		jsString(pair.PaymentMethod),
	)
}

func existsScript(selector string) string {
	if selector == "" {
		return "false"
	}
	return fmt.Sprintf(`!!document.querySelector(%s)`, jsString(selector))
}

// resultsReadyScript is true once the results container exists and no loading indicator is left.
// Without a results selector only the loading indicator is waited on.
func resultsReadyScript(selectors Selectors) string {
	container := "true"
	if selectors.Results != "" {
		container = existsScript(selectors.Results)
	}
	return fmt.Sprintf(
		`(() => %s && !(%s))()`,
		container,
		existsScript(selectors.Loading),
	)
}
