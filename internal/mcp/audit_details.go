package mcp

func (a WindowInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"window_id": a.WindowID}
}

func (a SendKeysToWindowInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"window_id": a.WindowID}
}

func (a SendKeysToWindowInput) auditContent() string { return a.Keys }

func (a SendKeysToControlInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"window_id": a.WindowID, "control": a.ControlClass}
}

func (a SendKeysToControlInput) auditContent() string { return a.Keys }

func (a SendKeysToControlByHandleInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"control": a.ControlHwnd}
}

func (a SendKeysToControlByHandleInput) auditContent() string { return a.Keys }

func (a MoveMouseInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"x": a.X, "y": a.Y}
}

func (a MoveMouseRelativeInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"dx": a.XOffset, "dy": a.YOffset}
}

func (a PointInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"x": a.X, "y": a.Y}
}

func (a FindWindowByTitleInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"title": a.Title, "exact": a.Exact}
}

func (a WaitForWindowInput) auditDetails() map[string]interface{} {
	d := map[string]interface{}{"title": a.Title}
	if a.TitleMatchMode != "" {
		d["mode"] = a.TitleMatchMode
	}
	return d
}

func (a SetClipboardInput) auditContent() string { return a.TextContent }

func (a ClipboardFileInput) auditDetails() map[string]interface{} {
	return map[string]interface{}{"path": a.SaveFilePath}
}

func (a OCRRegionInput) auditDetails() map[string]interface{} {
	r := a.Region
	return map[string]interface{}{"region": [4]int{r.Left, r.Top, r.Width, r.Height}}
}

func (o GetWindowTextOutput) auditContent() string { return o.Text }

func (o ClipboardTextOutput) auditContent() string { return o.Text }

func (o OCRRegionOutput) auditContent() string { return o.Text }
