// Package calendar_tools exposes Google Calendar through MCP tools:
// list_calendars, get_events, create_event, modify_event, delete_event and
// freebusy.
//
// Every tool takes an optional account argument selecting the stored
// credentials. Write tools are left out when the server runs read-only.
package calendar_tools
